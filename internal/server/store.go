package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakif/flatblog/internal/config"
	"github.com/sakif/flatblog/internal/repository"
	"github.com/sakif/flatblog/internal/repository/jsonfile"
	"github.com/sakif/flatblog/internal/repository/memory"
	sqliteRepo "github.com/sakif/flatblog/internal/repository/sqlite"
)

// OpenStore opens the backend named by cfg.Backend. The caller owns the
// returned store and must Close it.
//
// The store is not seeded here; see service.Bootstrap.
func OpenStore(cfg config.StorageConfig) (repository.Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		store, err := jsonfile.New(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("opening data directory: %w", err)
		}
		return store, nil

	case config.BackendSQLite:
		// The directory must exist before sqlite can create the file in it.
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil

	case config.BackendMemory:
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
