// Package memory is an in-process repository.Store. It keeps the encoded
// documents in a map, so it behaves like the file backend (absent vs empty,
// copies on every load) without touching the disk. Used by tests and by the
// "memory" storage backend for throwaway runs.
package memory

import (
	"context"
	"sync"

	"github.com/sakif/flatblog/internal/model"
	"github.com/sakif/flatblog/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	docs  map[string][]byte
	saves map[string]int

	// FailWith, when non-nil, is returned by every load and save.
	FailWith error
}

func New() *Store {
	return &Store{
		docs:  make(map[string][]byte),
		saves: make(map[string]int),
	}
}

func (s *Store) LoadPosts(ctx context.Context) ([]model.Post, error) {
	return load[model.Post](ctx, s, repository.PostsDocument)
}

func (s *Store) SavePosts(ctx context.Context, posts []model.Post) error {
	return save(ctx, s, repository.PostsDocument, posts)
}

func (s *Store) LoadUsers(ctx context.Context) ([]model.User, error) {
	return load[model.User](ctx, s, repository.UsersDocument)
}

func (s *Store) SaveUsers(ctx context.Context, users []model.User) error {
	return save(ctx, s, repository.UsersDocument, users)
}

func (s *Store) LoadMeta(ctx context.Context) (repository.PostMeta, error) {
	if err := ctx.Err(); err != nil {
		return repository.PostMeta{}, err
	}
	s.mu.Lock()
	data, fail := s.docs[repository.MetaDocument], s.FailWith
	s.mu.Unlock()
	if fail != nil {
		return repository.PostMeta{}, fail
	}
	return repository.DecodeMeta(data)
}

func (s *Store) SaveMeta(ctx context.Context, meta repository.PostMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := repository.EncodeMeta(meta)
	if err != nil {
		return err
	}
	return s.put(repository.MetaDocument, data)
}

func (s *Store) Initialize(ctx context.Context, seed repository.Seed) error {
	if !s.has(repository.PostsDocument) {
		if err := s.SavePosts(ctx, seed.Posts); err != nil {
			return err
		}
	}
	if !s.has(repository.UsersDocument) {
		if err := s.SaveUsers(ctx, seed.Users); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

// Saves reports how many times the named document has been written.
// Tests use it to check that failed operations do not persist anything.
func (s *Store) Saves(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[name]
}

func (s *Store) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[name]
	return ok
}

func load[T any](ctx context.Context, s *Store, name string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	data, fail := s.docs[name], s.FailWith
	s.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return repository.Decode[T](data)
}

func save[T any](ctx context.Context, s *Store, name string, items []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := repository.Encode(items)
	if err != nil {
		return err
	}
	return s.put(name, data)
}

func (s *Store) put(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	s.docs[name] = data
	s.saves[name]++
	return nil
}
