// Package repository defines how the blog reads and writes its two
// collections.
//
// There are no per-record operations on purpose. Every caller loads a whole
// collection, changes it in memory, and saves the whole collection back.
// Backends (jsonfile, sqlite, memory) only differ in where the document lives.
package repository

import (
	"context"

	"github.com/sakif/flatblog/internal/model"
)

// PostRepository loads and saves the full posts collection, plus the small
// meta document that remembers the highest post ID ever handed out.
type PostRepository interface {
	// LoadPosts returns an empty, non-nil slice when nothing has been stored yet.
	LoadPosts(ctx context.Context) ([]model.Post, error)
	// SavePosts overwrites the stored collection with posts.
	SavePosts(ctx context.Context, posts []model.Post) error

	// LoadMeta returns the zero PostMeta when nothing has been stored yet.
	LoadMeta(ctx context.Context) (PostMeta, error)
	SaveMeta(ctx context.Context, meta PostMeta) error
}

// PostMeta lives next to the posts collection rather than inside it, so
// posts.json stays a bare array.
type PostMeta struct {
	// LastPostID is the highest ID ever assigned, including deleted posts.
	LastPostID int `json:"last_post_id"`
}

// UserRepository loads and saves the full users collection.
type UserRepository interface {
	LoadUsers(ctx context.Context) ([]model.User, error)
	SaveUsers(ctx context.Context, users []model.User) error
}

// Store is a complete storage backend.
type Store interface {
	PostRepository
	UserRepository

	// Initialize writes seed.Posts if no posts document exists and seed.Users
	// if no users document exists. Existing documents are never touched, even
	// when they hold an empty array.
	Initialize(ctx context.Context, seed Seed) error

	Close() error
}

// Seed is the data written on the very first run.
type Seed struct {
	Posts []model.Post
	Users []model.User
}

// Default admin account created on first run.
const (
	AdminUsername = "admin"
	AdminPassword = "password"
	AdminEmail    = "admin@example.com"
)

// DefaultSeed returns the two sample posts and the admin account.
// adminHash must be the bcrypt hash of AdminPassword.
func DefaultSeed(adminHash string) Seed {
	return Seed{
		Posts: []model.Post{
			{
				ID:         1,
				Title:      "Welcome to My Blog",
				Content:    "This is my first blog post! Welcome to my blog. I created this using Go and it has been an amazing journey learning web development.",
				Author:     "Admin",
				DatePosted: "June 20, 2023",
			},
			{
				ID:         2,
				Title:      "Getting Started with Go",
				Content:    "Go is a statically typed, compiled language designed at Google. Its standard library ships an HTTP server, a template engine and JSON encoding, which is everything a small blog needs apart from a router and a password hash.",
				Author:     "Admin",
				DatePosted: "June 21, 2023",
			},
		},
		Users: []model.User{
			{
				Username: AdminUsername,
				Password: adminHash,
				Email:    AdminEmail,
			},
		},
	}
}
