// Package storage opens the lode stores ferry archives into and reads
// store:// URIs from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/justapithecus/lode/lode"
)

// Backend names a store implementation.
type Backend string

const (
	BackendFS     Backend = "fs"
	BackendS3     Backend = "s3"
	BackendMemory Backend = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Backend Backend
	// Path is the root directory for the fs backend.
	Path string
	S3   S3Config
}

// Validate checks that the selected backend is fully configured.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFS:
		if c.Path == "" {
			return errors.New("storage path is required for the fs backend")
		}
	case BackendS3:
		return c.S3.Validate()
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q (want fs, s3 or memory)", c.Backend)
	}
	return nil
}

// Open returns a factory for the configured backend. Every call of the
// factory returns the same store, so archive, history and store:// reads
// share one backend.
func Open(ctx context.Context, cfg Config) (lode.StoreFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var factory lode.StoreFactory
	switch cfg.Backend {
	case BackendFS:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, WrapOpenError(err, string(cfg.Backend))
		}
		factory = lode.NewFSFactory(cfg.Path)
	case BackendS3:
		f, err := newS3Factory(ctx, cfg.S3)
		if err != nil {
			return nil, WrapOpenError(err, string(cfg.Backend))
		}
		factory = f
	case BackendMemory:
		factory = Shared(lode.NewMemory())
	}
	return Lazy(factory), nil
}

// Shared returns a factory that always returns store.
func Shared(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

// Lazy returns a factory that calls factory once and caches its result.
func Lazy(factory lode.StoreFactory) lode.StoreFactory {
	var (
		once  sync.Once
		store lode.Store
		err   error
	)
	return func() (lode.Store, error) {
		once.Do(func() {
			store, err = factory()
		})
		return store, err
	}
}
