package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/catalog-engine/internal/domain/stock"
)

const (
	getVariantSQL = `SELECT id, product_id, size, color, stock, version
		FROM product_variants WHERE id = $1`

	// The version predicate implements the optimistic write: a stale
	// version matches no row and the save is reported as a conflict.
	saveVariantSQL = `UPDATE product_variants
		SET size = $3, color = $4, stock = $5, version = version + 1
		WHERE id = $1 AND version = $2`

	variantExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM product_variants
		WHERE product_id = $1 AND size = $2 AND color = $3 AND id <> $4
	)`

	createVariantSQL = `INSERT INTO product_variants (product_id, size, color, stock)
		VALUES ($1, $2, $3, $4) RETURNING id, version`
)

var _ stock.Repository = (*VariantRepository)(nil)

// VariantRepository implements stock.Repository backed by PostgreSQL.
type VariantRepository struct {
	pool *pgxpool.Pool
}

// NewVariantRepository returns a VariantRepository that uses the given pool.
func NewVariantRepository(pool *pgxpool.Pool) *VariantRepository {
	return &VariantRepository{pool: pool}
}

// Get returns a single variant by its identifier.
func (r *VariantRepository) Get(ctx context.Context, id int64) (*stock.Variant, error) {
	rows, err := r.pool.Query(ctx, getVariantSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting variant %d: %w", id, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVariant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stock.ErrNotFound
		}
		return nil, fmt.Errorf("getting variant %d: %w", id, err)
	}
	return v, nil
}

// Save writes the variant only when the stored version still matches
// v.Version, bumping both the stored and the in-memory version on success.
func (r *VariantRepository) Save(ctx context.Context, v *stock.Variant) error {
	tag, err := r.pool.Exec(ctx, saveVariantSQL, v.ID, v.Version, v.Size, v.Color, v.Stock)
	if err != nil {
		return fmt.Errorf("saving variant %d: %w", v.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a stale version from a deleted row.
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM product_variants WHERE id = $1)`, v.ID).Scan(&exists); err != nil {
			return fmt.Errorf("saving variant %d: %w", v.ID, err)
		}
		if !exists {
			return stock.ErrNotFound
		}
		return stock.ErrVersionConflict
	}
	v.Version++
	return nil
}

// ExistsForProduct reports whether another variant of the product already
// carries the size/color pair.
func (r *VariantRepository) ExistsForProduct(ctx context.Context, productID int64, size, color string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, variantExistsSQL, productID, size, color, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking variant uniqueness for product %d: %w", productID, err)
	}
	return exists, nil
}

// Create persists a new variant and fills in its assigned ID and version.
func (r *VariantRepository) Create(ctx context.Context, v *stock.Variant) error {
	err := r.pool.QueryRow(ctx, createVariantSQL, v.ProductID, v.Size, v.Color, v.Stock).
		Scan(&v.ID, &v.Version)
	if err != nil {
		return fmt.Errorf("creating variant of product %d: %w", v.ProductID, err)
	}
	return nil
}

func scanVariant(row pgx.CollectableRow) (*stock.Variant, error) {
	var v stock.Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.Stock, &v.Version)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
