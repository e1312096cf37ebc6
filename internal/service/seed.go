package service

import (
	"context"
	"fmt"

	"github.com/sakif/flatblog/internal/auth"
	"github.com/sakif/flatblog/internal/repository"
)

// Bootstrap prepares a store for first use: any collection that has never
// been written gets the default sample posts or the admin account.
// Existing data is left untouched, so it is safe to call on every start.
func Bootstrap(ctx context.Context, store repository.Store, passwords *auth.PasswordService) error {
	hash, err := passwords.Hash(repository.AdminPassword)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}
	if err := store.Initialize(ctx, repository.DefaultSeed(hash)); err != nil {
		return fmt.Errorf("seeding store: %w", err)
	}
	return nil
}
