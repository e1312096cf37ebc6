// Package jsonfile stores the blog's collections as two JSON files,
// posts.json and users.json, inside one data directory. A third file,
// meta.json, holds the post ID high-water mark.
//
// FILE SEMANTICS:
// Every load reads the whole file and every save rewrites it with
// os.WriteFile. There is no temp-file-and-rename step and no locking, so a
// crash in the middle of a write can leave a truncated file behind, and two
// concurrent saves race with the last one winning. Both are known and
// accepted for this backend.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sakif/flatblog/internal/model"
	"github.com/sakif/flatblog/internal/repository"
)

var _ repository.Store = (*Store)(nil)

const (
	PostsFile = "posts.json"
	UsersFile = "users.json"
	MetaFile  = "meta.json"
)

// Store is a file-backed repository.Store.
type Store struct {
	postsPath string
	usersPath string
	metaPath  string
}

// New returns a Store rooted at dir, creating the directory if needed.
// No files are created until the first save or Initialize.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: creating data directory %s: %w", dir, err)
	}
	return &Store{
		postsPath: filepath.Join(dir, PostsFile),
		usersPath: filepath.Join(dir, UsersFile),
		metaPath:  filepath.Join(dir, MetaFile),
	}, nil
}

func (s *Store) LoadPosts(ctx context.Context) ([]model.Post, error) {
	return load[model.Post](ctx, s.postsPath)
}

func (s *Store) SavePosts(ctx context.Context, posts []model.Post) error {
	return save(ctx, s.postsPath, posts)
}

func (s *Store) LoadUsers(ctx context.Context) ([]model.User, error) {
	return load[model.User](ctx, s.usersPath)
}

func (s *Store) SaveUsers(ctx context.Context, users []model.User) error {
	return save(ctx, s.usersPath, users)
}

func (s *Store) LoadMeta(ctx context.Context) (repository.PostMeta, error) {
	if err := ctx.Err(); err != nil {
		return repository.PostMeta{}, err
	}
	data, err := os.ReadFile(s.metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return repository.PostMeta{}, nil
	}
	if err != nil {
		return repository.PostMeta{}, fmt.Errorf("jsonfile: reading %s: %w", s.metaPath, err)
	}
	meta, err := repository.DecodeMeta(data)
	if err != nil {
		return repository.PostMeta{}, fmt.Errorf("jsonfile: %s: %w", s.metaPath, err)
	}
	return meta, nil
}

func (s *Store) SaveMeta(ctx context.Context, meta repository.PostMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := repository.EncodeMeta(meta)
	if err != nil {
		return fmt.Errorf("jsonfile: %s: %w", s.metaPath, err)
	}
	if err := os.WriteFile(s.metaPath, data, 0o644); err != nil {
		return fmt.Errorf("jsonfile: writing %s: %w", s.metaPath, err)
	}
	return nil
}

// Initialize seeds whichever of the two files does not exist yet.
func (s *Store) Initialize(ctx context.Context, seed repository.Seed) error {
	exists, err := fileExists(s.postsPath)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.SavePosts(ctx, seed.Posts); err != nil {
			return fmt.Errorf("jsonfile: seeding posts: %w", err)
		}
	}

	exists, err = fileExists(s.usersPath)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.SaveUsers(ctx, seed.Users); err != nil {
			return fmt.Errorf("jsonfile: seeding users: %w", err)
		}
	}
	return nil
}

// Close is a no-op; files are opened and closed per operation.
func (s *Store) Close() error { return nil }

func load[T any](ctx context.Context, path string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: reading %s: %w", path, err)
	}
	items, err := repository.Decode[T](data)
	if err != nil {
		return nil, fmt.Errorf("jsonfile: %s: %w", path, err)
	}
	return items, nil
}

func save[T any](ctx context.Context, path string, items []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := repository.Encode(items)
	if err != nil {
		return fmt.Errorf("jsonfile: %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("jsonfile: writing %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("jsonfile: checking %s: %w", path, err)
}
