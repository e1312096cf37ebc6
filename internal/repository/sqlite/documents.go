package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/flatblog/internal/model"
	"github.com/sakif/flatblog/internal/repository"
)

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

func (db *DB) LoadPosts(ctx context.Context) ([]model.Post, error) {
	return loadDocument[model.Post](ctx, db, repository.PostsDocument)
}

func (db *DB) SavePosts(ctx context.Context, posts []model.Post) error {
	return saveDocument(ctx, db, repository.PostsDocument, posts)
}

func (db *DB) LoadUsers(ctx context.Context) ([]model.User, error) {
	return loadDocument[model.User](ctx, db, repository.UsersDocument)
}

func (db *DB) SaveUsers(ctx context.Context, users []model.User) error {
	return saveDocument(ctx, db, repository.UsersDocument, users)
}

// LoadMeta reads the "meta" row; a missing row is the zero PostMeta.
func (db *DB) LoadMeta(ctx context.Context) (repository.PostMeta, error) {
	body, found, err := db.readRow(ctx, repository.MetaDocument)
	if err != nil || !found {
		return repository.PostMeta{}, err
	}
	meta, err := repository.DecodeMeta([]byte(body))
	if err != nil {
		return repository.PostMeta{}, fmt.Errorf("sqlite: %s: %w", repository.MetaDocument, err)
	}
	return meta, nil
}

func (db *DB) SaveMeta(ctx context.Context, meta repository.PostMeta) error {
	body, err := repository.EncodeMeta(meta)
	if err != nil {
		return fmt.Errorf("sqlite: %s: %w", repository.MetaDocument, err)
	}
	return db.writeRow(ctx, repository.MetaDocument, body)
}

// Initialize seeds each document only when its row is missing.
//
// INSERT OR IGNORE does the "only if absent" check and the write in one
// statement, so two processes starting at once cannot both seed.
func (db *DB) Initialize(ctx context.Context, seed repository.Seed) error {
	posts, err := repository.Encode(seed.Posts)
	if err != nil {
		return fmt.Errorf("sqlite: seeding posts: %w", err)
	}
	users, err := repository.Encode(seed.Users)
	if err != nil {
		return fmt.Errorf("sqlite: seeding users: %w", err)
	}

	now := time.Now()
	for name, body := range map[string][]byte{
		repository.PostsDocument: posts,
		repository.UsersDocument: users,
	} {
		_, err := db.conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO documents (name, body, updated_at) VALUES (?, ?, ?)`,
			name, string(body), now,
		)
		if err != nil {
			return fmt.Errorf("sqlite: seeding %s: %w", name, err)
		}
	}
	return nil
}

// loadDocument reads one collection. A missing row means the collection has
// never been written and decodes to an empty slice.
func loadDocument[T any](ctx context.Context, db *DB, name string) ([]T, error) {
	body, found, err := db.readRow(ctx, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return []T{}, nil
	}

	items, err := repository.Decode[T]([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", name, err)
	}
	return items, nil
}

// saveDocument replaces the whole collection.
func saveDocument[T any](ctx context.Context, db *DB, name string, items []T) error {
	body, err := repository.Encode(items)
	if err != nil {
		return fmt.Errorf("sqlite: %s: %w", name, err)
	}
	return db.writeRow(ctx, name, body)
}

func (db *DB) readRow(ctx context.Context, name string) (string, bool, error) {
	var body string
	err := db.conn.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE name = ?`, name,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: loading %s: %w", name, err)
	}
	return body, true, nil
}

// writeRow upserts one document row.
func (db *DB) writeRow(ctx context.Context, name string, body []byte) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		name, string(body), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving %s: %w", name, err)
	}
	return nil
}
