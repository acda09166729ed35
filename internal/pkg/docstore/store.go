package docstore

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/gofiber/fiber/v2/log"
)

var ErrNotFound = errors.New("document not found")

// Object describes a stored document.
type Object struct {
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Store persists KYC documents and their previews.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, key string) error
}

var (
	instance Store
	once     sync.Once
)

// Setup initialises the shared store: S3 when enabled, else the local
// directory.
func Setup() Store {
	once.Do(func() {
		cfg, err := LoadConfig()
		if err != nil {
			log.Errorf("[DocStore] invalid configuration, using local storage: %v", err)
			cfg = &Config{LocalRoot: "./uploads"}
		}
		if cfg.Enabled {
			s, err := NewS3Store(context.Background(), cfg)
			if err == nil {
				instance = s
				return
			}
			log.Errorf("[DocStore] S3 unavailable, using local storage: %v", err)
		}
		instance = NewLocalStore(cfg.LocalRoot)
	})
	return instance
}

// GetStore returns the shared store, initialising it on first use.
func GetStore() Store {
	return Setup()
}

// SetStore replaces the shared store (tests, alternative backends).
func SetStore(s Store) {
	once.Do(func() {})
	instance = s
}
