// Package model defines the data structures used throughout the application.
//
// The JSON tags are the on-disk format: posts.json and users.json are plain
// arrays of these objects, so renaming a tag breaks every existing data file.
package model

// DateLayout is how DatePosted is rendered, e.g. "June 20, 2023".
const DateLayout = "January 02, 2006"

// Post is a user-authored text entry.
//
// ID is assigned as (highest existing ID) + 1 when the post is created.
// DatePosted is stored pre-formatted, not as a timestamp; existing data
// files were written that way and the templates print it as-is.
type Post struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Author     string `json:"author"` // username of the creator
	DatePosted string `json:"date_posted"`
}

// Flash is a one-shot status message shown on the next rendered page.
type Flash struct {
	Category string `json:"category"` // "success" or "error"
	Message  string `json:"message"`
}
