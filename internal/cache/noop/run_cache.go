// Package noop provides an in-process RunCache used when Redis is not configured.
package noop

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"gstrecon/internal/domain"
	"gstrecon/internal/port"
)

type runCache struct {
	mu     sync.Mutex
	locked map[string]bool
}

// NewRunCache returns a RunCache that never remembers runs but still serializes
// identical submissions within this process.
func NewRunCache() port.RunCache {
	return &runCache{locked: make(map[string]bool)}
}

func (c *runCache) Get(context.Context, string) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}

func (c *runCache) Set(context.Context, string, uuid.UUID) error { return nil }

func (c *runCache) Invalidate(context.Context, string) error { return nil }

func (c *runCache) Lock(_ context.Context, fingerprint string) (func(context.Context) error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked[fingerprint] {
		return nil, domain.ErrRunInProgress
	}
	c.locked[fingerprint] = true
	return func(context.Context) error {
		c.mu.Lock()
		delete(c.locked, fingerprint)
		c.mu.Unlock()
		return nil
	}, nil
}
