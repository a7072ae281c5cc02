// Package image maintains the per-product image set invariants: exactly one
// main image whenever any image exists, and a dense 1..N position ordering
// among the non-main images.
package image

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-engine/internal/domain/catalogerr"
	"github.com/xenking/catalog-engine/internal/domain/product"
	"github.com/xenking/catalog-engine/internal/domain/rules"
)

// Manager sequences validation and ordering writes for a product's image set.
type Manager struct {
	images   Repository
	products product.Repository
}

// NewManager creates a Manager over the given repositories.
func NewManager(images Repository, products product.Repository) *Manager {
	return &Manager{images: images, products: products}
}

// Add validates the URL and alt text, checks ownership and the per-product
// image ceiling, and persists the new image. The first image of a product
// becomes its main image; later images join the non-main ordering at the
// next free position.
func (m *Manager) Add(ctx context.Context, merchantID string, productID int64, url, altText string) (*Image, error) {
	if err := rules.Run(
		rules.AbsoluteURL("image URL", url),
		rules.MaxLen("image URL", url, MaxURLLen),
		rules.MaxLen("alt text", altText, MaxAltTextLen),
	); err != nil {
		return nil, err
	}

	if _, err := m.ownedProduct(ctx, merchantID, productID); err != nil {
		return nil, err
	}

	existing, err := m.images.ListByProduct(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "list images of product %d", productID)
	}
	if len(existing) >= MaxImagesPerProduct {
		return nil, catalogerr.Capacityf("a product holds at most %d images", MaxImagesPerProduct)
	}

	img := &Image{
		ProductID: productID,
		URL:       url,
		AltText:   altText,
		Position:  maxNonMainPosition(existing) + 1,
		IsMain:    findMain(existing) == nil,
	}
	if err := m.images.Create(ctx, img); err != nil {
		return nil, errors.Wrap(err, "create image")
	}
	return img, nil
}

// Reorder assigns positions 1..N to the product's non-main images following
// the given sequence. The supplied ids must be exactly the current non-main
// image ids; the main image never participates in reordering.
func (m *Manager) Reorder(ctx context.Context, merchantID string, productID int64, orderedIDs []int64) error {
	if err := rules.Run(
		rules.AllPositive("image ids", orderedIDs),
		rules.NoDuplicates("image ids", orderedIDs),
	); err != nil {
		return err
	}

	if _, err := m.ownedProduct(ctx, merchantID, productID); err != nil {
		return err
	}

	existing, err := m.images.ListByProduct(ctx, productID)
	if err != nil {
		return errors.Wrapf(err, "list images of product %d", productID)
	}

	nonMain := make(map[int64]struct{})
	for _, img := range existing {
		if !img.IsMain {
			nonMain[img.ID] = struct{}{}
		}
	}
	if len(orderedIDs) != len(nonMain) {
		return catalogerr.Conflictf("ordering must list every non-main image exactly once")
	}
	for _, id := range orderedIDs {
		if _, ok := nonMain[id]; !ok {
			return catalogerr.Conflictf("image %d is not a non-main image of this product", id)
		}
	}

	updates := make([]PositionUpdate, len(orderedIDs))
	for i, id := range orderedIDs {
		updates[i] = PositionUpdate{ImageID: id, Position: i + 1}
	}
	if err := m.images.ApplyOrdering(ctx, updates); err != nil {
		return errors.Wrap(err, "apply ordering")
	}
	return nil
}

// SetMain designates the image as its product's main image and returns the
// owning product's id. When another image currently holds the flag, the two
// images swap their stored sort positions, so the previous main takes over
// the target's slot in the non-main ordering rather than being appended.
func (m *Manager) SetMain(ctx context.Context, merchantID string, imageID int64) (int64, error) {
	target, err := m.images.Get(ctx, imageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, catalogerr.NotFound("image", imageID)
		}
		return 0, errors.Wrapf(err, "load image %d", imageID)
	}

	if _, err := m.ownedProduct(ctx, merchantID, target.ProductID); err != nil {
		return 0, err
	}
	if target.IsMain {
		return target.ProductID, nil
	}

	existing, err := m.images.ListByProduct(ctx, target.ProductID)
	if err != nil {
		return 0, errors.Wrapf(err, "list images of product %d", target.ProductID)
	}

	current := findMain(existing)
	var updates []PositionUpdate
	if current == nil {
		// Degenerate state: no main image yet, just mark the target.
		updates = []PositionUpdate{
			{ImageID: target.ID, Position: target.Position, IsMain: true},
		}
	} else {
		// Demote before promoting so the one-main uniqueness constraint
		// holds at every step of the transaction.
		updates = []PositionUpdate{
			{ImageID: current.ID, Position: target.Position, IsMain: false},
			{ImageID: target.ID, Position: current.Position, IsMain: true},
		}
	}
	if err := m.images.ApplyOrdering(ctx, updates); err != nil {
		return 0, errors.Wrap(err, "apply ordering")
	}
	return target.ProductID, nil
}

// Delete removes the image and returns the owning product's id. Deleting
// the main image is rejected while other images remain, since the product
// would be left without a cover; a new main must be chosen first. No image
// is promoted automatically. Deleting a non-main image closes the gap it
// leaves in the position ordering.
func (m *Manager) Delete(ctx context.Context, merchantID string, imageID int64) (int64, error) {
	target, err := m.images.Get(ctx, imageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, catalogerr.NotFound("image", imageID)
		}
		return 0, errors.Wrapf(err, "load image %d", imageID)
	}

	if _, err := m.ownedProduct(ctx, merchantID, target.ProductID); err != nil {
		return 0, err
	}

	existing, err := m.images.ListByProduct(ctx, target.ProductID)
	if err != nil {
		return 0, errors.Wrapf(err, "list images of product %d", target.ProductID)
	}

	if target.IsMain && len(existing) > 1 {
		return 0, catalogerr.Conflictf("cannot delete the main image while other images exist; choose a new main image first")
	}

	var reposition []PositionUpdate
	if !target.IsMain {
		for _, img := range existing {
			if !img.IsMain && img.Position > target.Position {
				reposition = append(reposition, PositionUpdate{
					ImageID:  img.ID,
					Position: img.Position - 1,
				})
			}
		}
	}
	if err := m.images.Delete(ctx, imageID, reposition); err != nil {
		return 0, errors.Wrapf(err, "delete image %d", imageID)
	}
	return target.ProductID, nil
}

// Main returns the product's main image, or a NotFoundError when the product
// has no images.
func (m *Manager) Main(ctx context.Context, productID int64) (*Image, error) {
	existing, err := m.images.ListByProduct(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "list images of product %d", productID)
	}
	main := findMain(existing)
	if main == nil {
		return nil, catalogerr.NotFound("main image of product", productID)
	}
	return main, nil
}

// ListByProduct returns the product's images, main first, then by position.
func (m *Manager) ListByProduct(ctx context.Context, productID int64) ([]Image, error) {
	imgs, err := m.images.ListByProduct(ctx, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "list images of product %d", productID)
	}
	return imgs, nil
}

// ownedProduct loads the product and verifies the caller owns it.
func (m *Manager) ownedProduct(ctx context.Context, merchantID string, productID int64) (*product.Product, error) {
	p, err := m.products.GetWithOwner(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, catalogerr.NotFound("product", productID)
		}
		return nil, errors.Wrapf(err, "load product %d", productID)
	}
	if p.MerchantID != merchantID {
		return nil, catalogerr.NotOwnerf("product %d belongs to another merchant", productID)
	}
	return p, nil
}

// findMain returns the main image of the set, or nil.
func findMain(imgs []Image) *Image {
	for i := range imgs {
		if imgs[i].IsMain {
			return &imgs[i]
		}
	}
	return nil
}

// maxNonMainPosition returns the highest position among non-main images,
// or 0 when none exist. The main image's stored position is ignored.
func maxNonMainPosition(imgs []Image) int {
	max := 0
	for _, img := range imgs {
		if !img.IsMain && img.Position > max {
			max = img.Position
		}
	}
	return max
}
