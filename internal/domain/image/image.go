package image

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested image does not exist.
var ErrNotFound = errors.New("image not found")

// Limits on a product's image set.
const (
	MaxImagesPerProduct = 10
	MaxURLLen           = 500
	MaxAltTextLen       = 255
)

// Image is one picture of a product. Exactly one image per non-empty set is
// the main (cover) image; the remaining images carry a dense 1..N position
// ordering. The main image's stored position is not part of that ordering.
type Image struct {
	ID        int64
	ProductID int64
	URL       string
	AltText   string
	Position  int
	IsMain    bool
}

// PositionUpdate describes the desired stored state of one image row inside
// an atomic multi-row ordering write.
type PositionUpdate struct {
	ImageID  int64
	Position int
	IsMain   bool
}

// Repository defines persistence operations for product images. ApplyOrdering
// and Delete must be atomic: either every row update lands or none does, so
// an interrupted operation can never leave the ordering invariant violated.
type Repository interface {
	// ListByProduct returns the product's images with the main image first,
	// then non-main images by ascending position.
	ListByProduct(ctx context.Context, productID int64) ([]Image, error)
	// Get returns the image or ErrNotFound.
	Get(ctx context.Context, id int64) (*Image, error)
	// Create persists a new image and fills in its assigned ID.
	Create(ctx context.Context, img *Image) error
	// ApplyOrdering writes all position/main updates in one transaction.
	ApplyOrdering(ctx context.Context, updates []PositionUpdate) error
	// Delete removes the image and applies the repositioning of the
	// surviving rows in the same transaction.
	Delete(ctx context.Context, id int64, reposition []PositionUpdate) error
}
