// Package handler turns HTTP requests into service calls.
//
// Handlers parse forms and URL parameters, call the services, and then
// either render a page or redirect with a flash message. They hold no
// business rules: who may delete what and how IDs are assigned both live in
// the service package.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/flatblog/internal/auth"
	"github.com/sakif/flatblog/internal/model"
)

// Page names. Each one is a file "<name>.html" that defines "content" (and
// optionally "title") for the shared "base" layout.
const (
	pageIndex    = "index"
	pageAnimated = "animated"
	pagePost     = "post"
	pageCreate   = "create"
	pageRegister = "register"
	pageLogin    = "login"
)

var pageNames = []string{pageIndex, pageAnimated, pagePost, pageCreate, pageRegister, pageLogin}

// pageData is what every template receives. Fields a page does not use are
// left zero.
type pageData struct {
	CurrentUser string
	Flashes     []model.Flash

	Posts []model.Post
	Post  *model.Post
}

var templateFuncs = template.FuncMap{
	"excerpt": excerpt,
	// delay staggers the entry animation on the animated list.
	"delay": func(i int) int { return i * 80 },
}

// View renders pages and carries flash messages across redirects.
type View struct {
	pages    map[string]*template.Template
	sessions *auth.SessionStore
	logger   *slog.Logger
}

// NewView parses every page once at startup. Each page gets its own template
// set (base + page) because every page defines the same "content" block.
func NewView(templates fs.FS, sessions *auth.SessionStore, logger *slog.Logger) (*View, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templates, "base.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &View{
		pages:    pages,
		sessions: sessions,
		logger:   logger,
	}, nil
}

// render fills in the visitor's identity and pending flashes, executes the
// page into a buffer and only then writes it, so a template error can still
// become a clean 500.
func (v *View) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	tmpl, ok := v.pages[page]
	if !ok {
		v.serverError(w, r, fmt.Errorf("unknown page %q", page))
		return
	}

	data.CurrentUser, _ = auth.UsernameFromContext(r.Context())
	if id, ok := auth.SessionIDFromContext(r.Context()); ok {
		data.Flashes = append(v.sessions.PopFlashes(id), data.Flashes...)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		v.serverError(w, r, fmt.Errorf("rendering %s: %w", page, err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		v.logger.Debug("client went away during render", slog.String("error", err.Error()))
	}
}

// redirect queues a flash for the visitor's next page and sends them to url.
func (v *View) redirect(w http.ResponseWriter, r *http.Request, url, category, message string) {
	if id, ok := auth.SessionIDFromContext(r.Context()); ok {
		v.sessions.AddFlash(id, model.Flash{Category: category, Message: message})
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// serverError logs err and answers with a bare 500. The error text never
// reaches the browser.
func (v *View) serverError(w http.ResponseWriter, r *http.Request, err error) {
	v.logger.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// excerpt shortens s to at most n runes, cutting at the last space.
func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := string([]rune(s)[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

// capitalize upper-cases the first letter of a service error message for
// display ("username is required" becomes "Username is required").
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
