package catalog

import "context"

// Cache is the invalidation port notified after every successful catalog
// write. Calls are fire-and-forget: implementations log failures and never
// block the write's outcome on them.
type Cache interface {
	Invalidate(ctx context.Context, scope string)
}

// Cache scope keys.
const (
	ScopeCategories = "categories"
	ScopeProducts   = "products"
)

// NopCache discards all invalidations.
type NopCache struct{}

// Invalidate does nothing.
func (NopCache) Invalidate(context.Context, string) {}
