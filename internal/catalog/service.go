// Package catalog exposes the catalog consistency engine to its callers.
// The Service is the single entry point for catalog writes: it sequences
// rule checks, resolves merchant ownership, invokes the stock ledger, image
// ordering manager, and category hierarchy guard, and notifies the cache
// port after every successful write.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/catalog-engine/internal/domain/catalogerr"
	"github.com/xenking/catalog-engine/internal/domain/category"
	"github.com/xenking/catalog-engine/internal/domain/image"
	"github.com/xenking/catalog-engine/internal/domain/product"
	"github.com/xenking/catalog-engine/internal/domain/rules"
	"github.com/xenking/catalog-engine/internal/domain/stock"
)

// Service orchestrates all catalog mutations.
type Service struct {
	lg         *zap.Logger
	ledger     *stock.Ledger
	images     *image.Manager
	categories *category.Guard
	products   product.Repository
	variants   stock.Repository
	cache      Cache
}

// NewService wires the catalog service from its component parts.
func NewService(
	lg *zap.Logger,
	ledger *stock.Ledger,
	images *image.Manager,
	categories *category.Guard,
	products product.Repository,
	variants stock.Repository,
	cache Cache,
) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{
		lg:         lg,
		ledger:     ledger,
		images:     images,
		categories: categories,
		products:   products,
		variants:   variants,
		cache:      cache,
	}
}

// --- Stock ---

// AdjustStock applies a signed delta to the variant's stock after verifying
// the caller owns the variant's product.
func (s *Service) AdjustStock(ctx context.Context, merchantID string, variantID int64, delta int) (*stock.Variant, error) {
	if _, err := s.ownedVariant(ctx, merchantID, variantID); err != nil {
		return nil, err
	}

	v, err := s.ledger.Adjust(ctx, variantID, delta)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, variantScope(variantID))
	s.lg.Info("stock adjusted",
		zap.Int64("variant_id", variantID),
		zap.Int("delta", delta),
		zap.Int("stock", v.Stock),
	)
	return v, nil
}

// HasAtLeast reports whether the variant currently holds at least quantity
// units. Read-only; the answer can be stale by the time a follow-up
// adjustment runs.
func (s *Service) HasAtLeast(ctx context.Context, variantID int64, quantity int) (bool, error) {
	return s.ledger.HasAtLeast(ctx, variantID, quantity)
}

// CreateVariantRequest holds the input for creating a product variant.
type CreateVariantRequest struct {
	MerchantID string
	ProductID  int64
	Size       string
	Color      string
	Stock      int
}

// CreateVariant validates and persists a new (size, color) stock-keeping
// unit of the product.
func (s *Service) CreateVariant(ctx context.Context, req CreateVariantRequest) (*stock.Variant, error) {
	if err := rules.Run(
		rules.MinLen("size", req.Size, 1),
		rules.MinLen("color", req.Color, 1),
		rules.NonNegative("stock", req.Stock),
	); err != nil {
		return nil, err
	}
	if _, err := s.ownedProduct(ctx, req.MerchantID, req.ProductID); err != nil {
		return nil, err
	}
	if err := rules.RunLookups(ctx, s.variantUnique(req.ProductID, req.Size, req.Color, 0)); err != nil {
		return nil, err
	}

	v := &stock.Variant{
		ProductID: req.ProductID,
		Size:      req.Size,
		Color:     req.Color,
		Stock:     req.Stock,
	}
	if err := s.variants.Create(ctx, v); err != nil {
		return nil, errors.Wrap(err, "create variant")
	}

	s.invalidate(ctx, productScope(req.ProductID))
	s.lg.Info("variant created", zap.Int64("variant_id", v.ID), zap.Int64("product_id", req.ProductID))
	return v, nil
}

// UpdateVariantRequest holds replacement fields for an existing variant.
type UpdateVariantRequest struct {
	MerchantID string
	VariantID  int64
	Size       string
	Color      string
	Stock      int
}

// UpdateVariant replaces the variant's size, color, and stock, re-validating
// the touched invariants.
func (s *Service) UpdateVariant(ctx context.Context, req UpdateVariantRequest) (*stock.Variant, error) {
	if err := rules.Run(
		rules.MinLen("size", req.Size, 1),
		rules.MinLen("color", req.Color, 1),
		rules.NonNegative("stock", req.Stock),
	); err != nil {
		return nil, err
	}

	v, err := s.ownedVariant(ctx, req.MerchantID, req.VariantID)
	if err != nil {
		return nil, err
	}
	if err := rules.RunLookups(ctx, s.variantUnique(v.ProductID, req.Size, req.Color, v.ID)); err != nil {
		return nil, err
	}

	v.Size = req.Size
	v.Color = req.Color
	v.Stock = req.Stock
	if err := s.variants.Save(ctx, v); err != nil {
		if errors.Is(err, stock.ErrVersionConflict) {
			return nil, &catalogerr.ConcurrencyError{Op: "update variant"}
		}
		return nil, errors.Wrapf(err, "save variant %d", v.ID)
	}

	s.invalidate(ctx, variantScope(v.ID))
	s.lg.Info("variant updated", zap.Int64("variant_id", v.ID))
	return v, nil
}

// --- Images ---

// AddImage attaches a new image to the product.
func (s *Service) AddImage(ctx context.Context, merchantID string, productID int64, url, altText string) (*image.Image, error) {
	img, err := s.images.Add(ctx, merchantID, productID, url, altText)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, imageScope(productID))
	s.lg.Info("image added", zap.Int64("image_id", img.ID), zap.Int64("product_id", productID), zap.Bool("main", img.IsMain))
	return img, nil
}

// ReorderImages rewrites the non-main image ordering of the product.
func (s *Service) ReorderImages(ctx context.Context, merchantID string, productID int64, orderedIDs []int64) error {
	if err := s.images.Reorder(ctx, merchantID, productID, orderedIDs); err != nil {
		return err
	}
	s.invalidate(ctx, imageScope(productID))
	s.lg.Info("images reordered", zap.Int64("product_id", productID), zap.Int("count", len(orderedIDs)))
	return nil
}

// SetMainImage designates the image as its product's main image.
func (s *Service) SetMainImage(ctx context.Context, merchantID string, imageID int64) error {
	productID, err := s.images.SetMain(ctx, merchantID, imageID)
	if err != nil {
		return err
	}
	s.invalidate(ctx, imageScope(productID))
	s.lg.Info("main image set", zap.Int64("image_id", imageID), zap.Int64("product_id", productID))
	return nil
}

// DeleteImage removes the image from its product's set.
func (s *Service) DeleteImage(ctx context.Context, merchantID string, imageID int64) error {
	productID, err := s.images.Delete(ctx, merchantID, imageID)
	if err != nil {
		return err
	}
	s.invalidate(ctx, imageScope(productID))
	s.lg.Info("image deleted", zap.Int64("image_id", imageID), zap.Int64("product_id", productID))
	return nil
}

// GetMainImage returns the product's main image.
func (s *Service) GetMainImage(ctx context.Context, productID int64) (*image.Image, error) {
	return s.images.Main(ctx, productID)
}

// ListImages returns the product's images, main first, then by position.
func (s *Service) ListImages(ctx context.Context, productID int64) ([]image.Image, error) {
	return s.images.ListByProduct(ctx, productID)
}

// --- Categories ---

// CreateCategory validates and persists a new category.
func (s *Service) CreateCategory(ctx context.Context, in category.CreateInput) (*category.Category, error) {
	c, err := s.categories.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, ScopeCategories)
	s.lg.Info("category created", zap.Int64("category_id", c.ID), zap.String("name", c.Name))
	return c, nil
}

// UpdateCategory validates and persists replacement fields for the category.
func (s *Service) UpdateCategory(ctx context.Context, id int64, in category.UpdateInput) (*category.Category, error) {
	c, err := s.categories.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, ScopeCategories)
	s.lg.Info("category updated", zap.Int64("category_id", c.ID))
	return c, nil
}

// --- Products ---

// CreateProductRequest holds the input for creating a product.
type CreateProductRequest struct {
	MerchantID string
	CategoryID int64
	Name       string
	Price      decimal.Decimal
}

// CreateProduct validates and persists a new product owned by the merchant.
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (*product.Product, error) {
	if err := rules.Run(
		rules.MinLen("product name", req.Name, 3),
		s.priceNotNegative(req.Price),
	); err != nil {
		return nil, err
	}
	if err := rules.RunLookups(ctx, s.categoryExists(req.CategoryID)); err != nil {
		return nil, err
	}

	p := &product.Product{
		MerchantID: req.MerchantID,
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Price:      req.Price,
		Active:     true,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}

	s.invalidate(ctx, ScopeProducts)
	s.lg.Info("product created", zap.Int64("product_id", p.ID), zap.String("merchant_id", p.MerchantID))
	return p, nil
}

// UpdateProductRequest holds replacement fields for an existing product.
type UpdateProductRequest struct {
	MerchantID string
	ProductID  int64
	CategoryID int64
	Name       string
	Price      decimal.Decimal
	Active     bool
}

// UpdateProduct validates and persists replacement fields, re-checking
// ownership and the category reference.
func (s *Service) UpdateProduct(ctx context.Context, req UpdateProductRequest) (*product.Product, error) {
	if err := rules.Run(
		rules.MinLen("product name", req.Name, 3),
		s.priceNotNegative(req.Price),
	); err != nil {
		return nil, err
	}

	p, err := s.ownedProduct(ctx, req.MerchantID, req.ProductID)
	if err != nil {
		return nil, err
	}
	if err := rules.RunLookups(ctx, s.categoryExists(req.CategoryID)); err != nil {
		return nil, err
	}

	p.CategoryID = req.CategoryID
	p.Name = req.Name
	p.Price = req.Price
	p.Active = req.Active
	if err := s.products.Update(ctx, p); err != nil {
		return nil, errors.Wrapf(err, "update product %d", p.ID)
	}

	s.invalidate(ctx, productScope(p.ID))
	s.lg.Info("product updated", zap.Int64("product_id", p.ID))
	return p, nil
}

// DeleteProduct removes the product after an ownership check. Order-history
// constraints on deletion are enforced by the persistence collaborator.
func (s *Service) DeleteProduct(ctx context.Context, merchantID string, productID int64) error {
	if _, err := s.ownedProduct(ctx, merchantID, productID); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, productID); err != nil {
		return errors.Wrapf(err, "delete product %d", productID)
	}

	s.invalidate(ctx, productScope(productID))
	s.lg.Info("product deleted", zap.Int64("product_id", productID))
	return nil
}

// --- Lookup rules and helpers ---

func (s *Service) priceNotNegative(price decimal.Decimal) rules.Rule {
	return func() error {
		if price.IsNegative() {
			return catalogerr.Validationf("price must not be negative")
		}
		return nil
	}
}

func (s *Service) categoryExists(id int64) rules.LookupRule {
	return func(ctx context.Context) error {
		return s.categories.Exists(ctx, id)
	}
}

func (s *Service) variantUnique(productID int64, size, color string, excludeID int64) rules.LookupRule {
	return func(ctx context.Context) error {
		taken, err := s.variants.ExistsForProduct(ctx, productID, size, color, excludeID)
		if err != nil {
			return errors.Wrap(err, "check variant uniqueness")
		}
		if taken {
			return catalogerr.Conflictf("the product already has a %s / %s variant", size, color)
		}
		return nil
	}
}

func (s *Service) ownedProduct(ctx context.Context, merchantID string, productID int64) (*product.Product, error) {
	p, err := s.products.GetWithOwner(ctx, productID)
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

func (s *Service) ownedVariant(ctx context.Context, merchantID string, variantID int64) (*stock.Variant, error) {
	v, err := s.variants.Get(ctx, variantID)
	if err != nil {
		if errors.Is(err, stock.ErrNotFound) {
			return nil, catalogerr.NotFound("variant", variantID)
		}
		return nil, errors.Wrapf(err, "load variant %d", variantID)
	}
	if _, err := s.ownedProduct(ctx, merchantID, v.ProductID); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) invalidate(ctx context.Context, scope string) {
	s.cache.Invalidate(ctx, scope)
}

func variantScope(id int64) string { return fmt.Sprintf("variant:%d", id) }

func productScope(id int64) string { return fmt.Sprintf("product:%d", id) }

func imageScope(productID int64) string { return fmt.Sprintf("product:%d:images", productID) }
