package category

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested category does not exist.
var ErrNotFound = errors.New("category not found")

// MaxCategories is the catalog-wide ceiling on the number of categories.
const MaxCategories = 100

// Category is one node of the catalog's category tree. ParentID is nil for
// root categories.
type Category struct {
	ID          int64
	Name        string
	Description string
	SortOrder   int
	ParentID    *int64
	Active      bool
}

// Repository defines persistence operations for categories.
type Repository interface {
	// Get returns the category or ErrNotFound.
	Get(ctx context.Context, id int64) (*Category, error)
	// ExistsByName reports whether a category with the given name exists,
	// compared case-insensitively. excludeID skips the record being
	// updated; pass 0 on create.
	ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error)
	// Count returns the total number of categories.
	Count(ctx context.Context) (int, error)
	// Create persists a new category and fills in its assigned ID.
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
}
