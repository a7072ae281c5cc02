package stock

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested variant does not exist.
	ErrNotFound = errors.New("variant not found")
	// ErrVersionConflict is returned by Repository.Save when the stored
	// version no longer matches the loaded one.
	ErrVersionConflict = errors.New("variant version conflict")
)

// Variant is a (size, color) stock-keeping unit of a product. Version is the
// optimistic-concurrency stamp bumped by every successful Save.
type Variant struct {
	ID        int64
	ProductID int64
	Size      string
	Color     string
	Stock     int
	Version   int64
}

// Repository defines persistence operations for variants.
type Repository interface {
	// Get returns the variant or ErrNotFound.
	Get(ctx context.Context, id int64) (*Variant, error)
	// Save writes the variant only when the stored version equals
	// v.Version, bumping the version on success. A stale version yields
	// ErrVersionConflict; a missing row yields ErrNotFound.
	Save(ctx context.Context, v *Variant) error
	// ExistsForProduct reports whether another variant of the product
	// already carries the given size/color pair. excludeID skips the
	// record being updated.
	ExistsForProduct(ctx context.Context, productID int64, size, color string, excludeID int64) (bool, error)
	Create(ctx context.Context, v *Variant) error
}
