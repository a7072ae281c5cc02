package catalog

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/catalog-engine/internal/domain/catalogerr"
	"github.com/xenking/catalog-engine/internal/domain/category"
	"github.com/xenking/catalog-engine/internal/domain/image"
	"github.com/xenking/catalog-engine/internal/domain/product"
	"github.com/xenking/catalog-engine/internal/domain/stock"
)

const (
	ownerID    = "2f1d9a4e-9f2c-43d1-b0c7-24ad46a2f81a"
	strangerID = "e3b0c442-98fc-4c14-9afb-f4c8996fb924"
)

// --- Mock implementations ---

type mockProductRepo struct {
	products map[int64]*product.Product
	nextID   int64
}

func (m *mockProductRepo) GetWithOwner(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) Create(_ context.Context, p *product.Product) error {
	p.ID = m.nextID
	m.nextID++
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *mockProductRepo) Update(_ context.Context, p *product.Product) error {
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id int64) error {
	delete(m.products, id)
	return nil
}

type mockVariantRepo struct {
	variants map[int64]*stock.Variant
	nextID   int64
}

func (m *mockVariantRepo) Get(_ context.Context, id int64) (*stock.Variant, error) {
	v, ok := m.variants[id]
	if !ok {
		return nil, stock.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *mockVariantRepo) Save(_ context.Context, v *stock.Variant) error {
	stored, ok := m.variants[v.ID]
	if !ok {
		return stock.ErrNotFound
	}
	if stored.Version != v.Version {
		return stock.ErrVersionConflict
	}
	v.Version++
	cp := *v
	m.variants[v.ID] = &cp
	return nil
}

func (m *mockVariantRepo) ExistsForProduct(_ context.Context, productID int64, size, color string, excludeID int64) (bool, error) {
	for _, v := range m.variants {
		if v.ID != excludeID && v.ProductID == productID && v.Size == size && v.Color == color {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockVariantRepo) Create(_ context.Context, v *stock.Variant) error {
	v.ID = m.nextID
	m.nextID++
	cp := *v
	m.variants[v.ID] = &cp
	return nil
}

type mockImageRepo struct {
	images map[int64]*image.Image
	nextID int64
}

func (m *mockImageRepo) ListByProduct(_ context.Context, productID int64) ([]image.Image, error) {
	var out []image.Image
	for _, img := range m.images {
		if img.ProductID == productID {
			out = append(out, *img)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsMain != out[j].IsMain {
			return out[i].IsMain
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (m *mockImageRepo) Get(_ context.Context, id int64) (*image.Image, error) {
	img, ok := m.images[id]
	if !ok {
		return nil, image.ErrNotFound
	}
	cp := *img
	return &cp, nil
}

func (m *mockImageRepo) Create(_ context.Context, img *image.Image) error {
	img.ID = m.nextID
	m.nextID++
	cp := *img
	m.images[img.ID] = &cp
	return nil
}

func (m *mockImageRepo) ApplyOrdering(_ context.Context, updates []image.PositionUpdate) error {
	for _, u := range updates {
		img, ok := m.images[u.ImageID]
		if !ok {
			return image.ErrNotFound
		}
		img.Position = u.Position
		img.IsMain = u.IsMain
	}
	return nil
}

func (m *mockImageRepo) Delete(_ context.Context, id int64, reposition []image.PositionUpdate) error {
	delete(m.images, id)
	for _, u := range reposition {
		if img, ok := m.images[u.ImageID]; ok {
			img.Position = u.Position
		}
	}
	return nil
}

type mockCategoryRepo struct {
	categories map[int64]*category.Category
	nextID     int64
}

func (m *mockCategoryRepo) Get(_ context.Context, id int64) (*category.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, category.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCategoryRepo) ExistsByName(_ context.Context, name string, excludeID int64) (bool, error) {
	for _, c := range m.categories {
		if c.ID != excludeID && strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCategoryRepo) Count(_ context.Context) (int, error) {
	return len(m.categories), nil
}

func (m *mockCategoryRepo) Create(_ context.Context, c *category.Category) error {
	c.ID = m.nextID
	m.nextID++
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *mockCategoryRepo) Update(_ context.Context, c *category.Category) error {
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

// recordingCache captures invalidation scopes in order.
type recordingCache struct {
	scopes []string
}

func (c *recordingCache) Invalidate(_ context.Context, scope string) {
	c.scopes = append(c.scopes, scope)
}

// --- Fixture ---

type fixture struct {
	svc        *Service
	products   *mockProductRepo
	variants   *mockVariantRepo
	images     *mockImageRepo
	categories *mockCategoryRepo
	cache      *recordingCache
}

func newFixture() *fixture {
	products := &mockProductRepo{products: map[int64]*product.Product{
		10: {ID: 10, MerchantID: ownerID, CategoryID: 1, Name: "Trail Shoe", Price: decimal.RequireFromString("79.90"), Active: true},
	}, nextID: 11}
	variants := &mockVariantRepo{variants: map[int64]*stock.Variant{
		1: {ID: 1, ProductID: 10, Size: "M", Color: "red", Stock: 10},
	}, nextID: 2}
	images := &mockImageRepo{images: make(map[int64]*image.Image), nextID: 1}
	categories := &mockCategoryRepo{categories: map[int64]*category.Category{
		1: {ID: 1, Name: "Shoes", Active: true},
	}, nextID: 2}
	cache := &recordingCache{}

	svc := NewService(
		zap.NewNop(),
		stock.NewLedger(variants),
		image.NewManager(images, products),
		category.NewGuard(categories),
		products,
		variants,
		cache,
	)
	return &fixture{svc: svc, products: products, variants: variants, images: images, categories: categories, cache: cache}
}

// --- Tests ---

func TestAdjustStock_OwnerSucceedsAndInvalidatesCache(t *testing.T) {
	f := newFixture()

	v, err := f.svc.AdjustStock(context.Background(), ownerID, 1, -3)

	require.NoError(t, err)
	assert.Equal(t, 7, v.Stock)
	assert.Equal(t, []string{"variant:1"}, f.cache.scopes)
}

func TestAdjustStock_ForeignMerchantRejected(t *testing.T) {
	f := newFixture()

	_, err := f.svc.AdjustStock(context.Background(), strangerID, 1, -3)

	var authErr *catalogerr.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 10, f.variants.variants[1].Stock)
	assert.Empty(t, f.cache.scopes)
}

func TestAdjustStock_UnknownVariant(t *testing.T) {
	f := newFixture()

	_, err := f.svc.AdjustStock(context.Background(), ownerID, 404, 1)

	var nfErr *catalogerr.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestAdjustStock_InsufficientLeavesCacheUntouched(t *testing.T) {
	f := newFixture()

	_, err := f.svc.AdjustStock(context.Background(), ownerID, 1, -11)

	var insufficient *catalogerr.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Empty(t, f.cache.scopes)
}

func TestHasAtLeast(t *testing.T) {
	f := newFixture()

	ok, err := f.svc.HasAtLeast(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.HasAtLeast(context.Background(), 1, 11)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateVariant(t *testing.T) {
	f := newFixture()

	v, err := f.svc.CreateVariant(context.Background(), CreateVariantRequest{
		MerchantID: ownerID,
		ProductID:  10,
		Size:       "L",
		Color:      "blue",
		Stock:      5,
	})

	require.NoError(t, err)
	assert.NotZero(t, v.ID)
	assert.Equal(t, []string{"product:10"}, f.cache.scopes)
}

func TestCreateVariant_DuplicateSizeColor(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateVariant(context.Background(), CreateVariantRequest{
		MerchantID: ownerID,
		ProductID:  10,
		Size:       "M",
		Color:      "red",
		Stock:      5,
	})

	var cErr *catalogerr.ConflictError
	require.ErrorAs(t, err, &cErr)
}

func TestCreateVariant_RejectsEmptyLabelsAndNegativeStock(t *testing.T) {
	f := newFixture()
	var vErr *catalogerr.ValidationError

	_, err := f.svc.CreateVariant(context.Background(), CreateVariantRequest{MerchantID: ownerID, ProductID: 10, Size: "", Color: "red"})
	require.ErrorAs(t, err, &vErr)

	_, err = f.svc.CreateVariant(context.Background(), CreateVariantRequest{MerchantID: ownerID, ProductID: 10, Size: "M", Color: "red", Stock: -1})
	require.ErrorAs(t, err, &vErr)
}

func TestUpdateVariant(t *testing.T) {
	f := newFixture()

	v, err := f.svc.UpdateVariant(context.Background(), UpdateVariantRequest{
		MerchantID: ownerID,
		VariantID:  1,
		Size:       "XL",
		Color:      "red",
		Stock:      2,
	})

	require.NoError(t, err)
	assert.Equal(t, "XL", v.Size)
	assert.Equal(t, 2, f.variants.variants[1].Stock)
	assert.Equal(t, []string{"variant:1"}, f.cache.scopes)
}

func TestImageLifecycle_InvalidatesImageScope(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	main, err := f.svc.AddImage(ctx, ownerID, 10, "https://cdn.example.com/main.jpg", "cover")
	require.NoError(t, err)
	a, err := f.svc.AddImage(ctx, ownerID, 10, "https://cdn.example.com/a.jpg", "")
	require.NoError(t, err)
	b, err := f.svc.AddImage(ctx, ownerID, 10, "https://cdn.example.com/b.jpg", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.ReorderImages(ctx, ownerID, 10, []int64{b.ID, a.ID}))
	require.NoError(t, f.svc.SetMainImage(ctx, ownerID, a.ID))
	require.NoError(t, f.svc.DeleteImage(ctx, ownerID, b.ID))

	got, err := f.svc.GetMainImage(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	imgs, err := f.svc.ListImages(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, imgs, 2)
	assert.False(t, f.images.images[main.ID].IsMain)

	assert.Equal(t, []string{
		"product:10:images",
		"product:10:images",
		"product:10:images",
		"product:10:images",
		"product:10:images",
		"product:10:images",
	}, f.cache.scopes)
}

func TestCreateCategory_InvalidatesCategoryScope(t *testing.T) {
	f := newFixture()

	c, err := f.svc.CreateCategory(context.Background(), category.CreateInput{Name: "Hats"})

	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.Equal(t, []string{ScopeCategories}, f.cache.scopes)
}

func TestCreateCategory_FailureSkipsInvalidation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateCategory(context.Background(), category.CreateInput{Name: "shoes"})

	var cErr *catalogerr.ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Empty(t, f.cache.scopes)
}

func TestUpdateCategory(t *testing.T) {
	f := newFixture()

	c, err := f.svc.UpdateCategory(context.Background(), 1, category.UpdateInput{Name: "Footwear", Active: true})

	require.NoError(t, err)
	assert.Equal(t, "Footwear", c.Name)
	assert.Equal(t, []string{ScopeCategories}, f.cache.scopes)
}

func TestCreateProduct(t *testing.T) {
	f := newFixture()

	p, err := f.svc.CreateProduct(context.Background(), CreateProductRequest{
		MerchantID: ownerID,
		CategoryID: 1,
		Name:       "Road Shoe",
		Price:      decimal.RequireFromString("129.00"),
	})

	require.NoError(t, err)
	assert.True(t, p.Active)
	assert.Equal(t, []string{ScopeProducts}, f.cache.scopes)
}

func TestCreateProduct_Invalid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateProduct(ctx, CreateProductRequest{MerchantID: ownerID, CategoryID: 1, Name: "ab"})
	var vErr *catalogerr.ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = f.svc.CreateProduct(ctx, CreateProductRequest{MerchantID: ownerID, CategoryID: 1, Name: "Road Shoe", Price: decimal.RequireFromString("-1")})
	require.ErrorAs(t, err, &vErr)

	_, err = f.svc.CreateProduct(ctx, CreateProductRequest{MerchantID: ownerID, CategoryID: 404, Name: "Road Shoe"})
	var nfErr *catalogerr.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestUpdateProduct_Ownership(t *testing.T) {
	f := newFixture()

	_, err := f.svc.UpdateProduct(context.Background(), UpdateProductRequest{
		MerchantID: strangerID,
		ProductID:  10,
		CategoryID: 1,
		Name:       "Hijacked",
		Active:     true,
	})

	var authErr *catalogerr.AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestDeleteProduct(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.svc.DeleteProduct(context.Background(), ownerID, 10))
	assert.NotContains(t, f.products.products, int64(10))
	assert.Equal(t, []string{"product:10"}, f.cache.scopes)
}

func TestOutcomeFrom(t *testing.T) {
	assert.Equal(t, Outcome{OK: true}, OutcomeFrom(nil))

	out := OutcomeFrom(&catalogerr.InsufficientStockError{Available: 3, Requested: 5})
	assert.False(t, out.OK)
	assert.Equal(t, "Insufficient stock. Available: 3, Requested: 5", out.Message)

	out = OutcomeFrom(errors.New("pg: connection refused"))
	assert.False(t, out.OK)
	assert.Equal(t, genericFailure, out.Message)
}
