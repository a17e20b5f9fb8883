// Package cache provides a read-through cache of precomputed group views.
package cache

import (
	"context"

	"github.com/mmynk/contri/internal/models"
)

// Loader builds a group view from the store on a cache miss.
type Loader func(ctx context.Context) (*models.GroupView, error)

// GroupCache stores group views keyed by group ID with a bounded lifetime.
type GroupCache interface {
	// Get returns the cached view for groupID, calling load on a miss and
	// caching its result.
	Get(ctx context.Context, groupID string, load Loader) (*models.GroupView, error)

	// Invalidate drops the cached view for groupID.
	Invalidate(ctx context.Context, groupID string) error
}

// Nop is a GroupCache that never caches.
type Nop struct{}

var _ GroupCache = Nop{}

func (Nop) Get(ctx context.Context, _ string, load Loader) (*models.GroupView, error) {
	return load(ctx)
}

func (Nop) Invalidate(context.Context, string) error { return nil }
