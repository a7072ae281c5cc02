package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/catalog-engine/internal/domain/image"
)

const (
	listImagesSQL = `SELECT id, product_id, url, alt_text, position, is_main
		FROM product_images WHERE product_id = $1
		ORDER BY is_main DESC, position`

	getImageSQL = `SELECT id, product_id, url, alt_text, position, is_main
		FROM product_images WHERE id = $1`

	createImageSQL = `INSERT INTO product_images (product_id, url, alt_text, position, is_main)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	updateImagePositionSQL = `UPDATE product_images
		SET position = $2, is_main = $3 WHERE id = $1`

	deleteImageSQL = `DELETE FROM product_images WHERE id = $1`
)

var _ image.Repository = (*ImageRepository)(nil)

// ImageRepository implements image.Repository backed by PostgreSQL. The
// multi-row ordering writes run inside a single transaction so the one-main
// and dense-position invariants hold even across interrupted operations.
type ImageRepository struct {
	pool *pgxpool.Pool
}

// NewImageRepository returns an ImageRepository that uses the given pool.
func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// ListByProduct returns the product's images, main image first, then the rest
// by ascending position.
func (r *ImageRepository) ListByProduct(ctx context.Context, productID int64) ([]image.Image, error) {
	rows, err := r.pool.Query(ctx, listImagesSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing images of product %d: %w", productID, err)
	}

	imgs, err := pgx.CollectRows(rows, scanImage)
	if err != nil {
		return nil, fmt.Errorf("listing images of product %d: %w", productID, err)
	}
	return imgs, nil
}

// Get returns a single image by its identifier.
func (r *ImageRepository) Get(ctx context.Context, id int64) (*image.Image, error) {
	rows, err := r.pool.Query(ctx, getImageSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting image %d: %w", id, err)
	}

	img, err := pgx.CollectExactlyOneRow(rows, scanImage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, image.ErrNotFound
		}
		return nil, fmt.Errorf("getting image %d: %w", id, err)
	}
	return &img, nil
}

// Create persists a new image and fills in its assigned ID.
func (r *ImageRepository) Create(ctx context.Context, img *image.Image) error {
	err := r.pool.QueryRow(ctx, createImageSQL,
		img.ProductID, img.URL, img.AltText, img.Position, img.IsMain,
	).Scan(&img.ID)
	if err != nil {
		return fmt.Errorf("creating image for product %d: %w", img.ProductID, err)
	}
	return nil
}

// ApplyOrdering writes all position and main-flag updates in one transaction.
func (r *ImageRepository) ApplyOrdering(ctx context.Context, updates []image.PositionUpdate) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return applyUpdates(ctx, tx, updates)
	})
}

// Delete removes the image and repositions the surviving rows in the same
// transaction.
func (r *ImageRepository) Delete(ctx context.Context, id int64, reposition []image.PositionUpdate) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deleteImageSQL, id)
		if err != nil {
			return fmt.Errorf("deleting image %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return image.ErrNotFound
		}
		return applyUpdates(ctx, tx, reposition)
	})
}

func applyUpdates(ctx context.Context, tx pgx.Tx, updates []image.PositionUpdate) error {
	for _, u := range updates {
		tag, err := tx.Exec(ctx, updateImagePositionSQL, u.ImageID, u.Position, u.IsMain)
		if err != nil {
			return fmt.Errorf("positioning image %d: %w", u.ImageID, err)
		}
		if tag.RowsAffected() == 0 {
			return image.ErrNotFound
		}
	}
	return nil
}

func scanImage(row pgx.CollectableRow) (image.Image, error) {
	var img image.Image
	err := row.Scan(&img.ID, &img.ProductID, &img.URL, &img.AltText, &img.Position, &img.IsMain)
	return img, err
}
