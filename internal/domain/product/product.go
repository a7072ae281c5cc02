package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a merchant-owned catalog item. MerchantID is the owner
// identity resolved alongside the product for ownership checks.
type Product struct {
	ID         int64
	MerchantID string
	CategoryID int64
	Name       string
	Price      decimal.Decimal
	Active     bool
}

// Repository defines persistence operations for products.
type Repository interface {
	// GetWithOwner resolves the product together with its owning merchant
	// identity in a single lookup. Returns ErrNotFound when the product
	// does not exist.
	GetWithOwner(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}
