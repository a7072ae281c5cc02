package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/catalog-engine/internal/domain/category"
)

const (
	getCategorySQL = `SELECT id, name, description, sort_order, parent_id, active
		FROM categories WHERE id = $1`

	categoryNameExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM categories WHERE LOWER(name) = LOWER($1) AND id <> $2
	)`

	countCategoriesSQL = `SELECT COUNT(*) FROM categories`

	createCategorySQL = `INSERT INTO categories (name, description, sort_order, parent_id, active)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	updateCategorySQL = `UPDATE categories
		SET name = $2, description = $3, sort_order = $4, parent_id = $5, active = $6
		WHERE id = $1`
)

var _ category.Repository = (*CategoryRepository)(nil)

// CategoryRepository implements category.Repository backed by PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// Get returns a single category by its identifier.
func (r *CategoryRepository) Get(ctx context.Context, id int64) (*category.Category, error) {
	rows, err := r.pool.Query(ctx, getCategorySQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting category %d: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, category.ErrNotFound
		}
		return nil, fmt.Errorf("getting category %d: %w", id, err)
	}
	return c, nil
}

// ExistsByName reports whether a category with the name already exists,
// compared case-insensitively.
func (r *CategoryRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, categoryNameExistsSQL, name, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking category name %q: %w", name, err)
	}
	return exists, nil
}

// Count returns the total number of categories.
func (r *CategoryRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countCategoriesSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting categories: %w", err)
	}
	return n, nil
}

// Create persists a new category and fills in its assigned ID.
func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	err := r.pool.QueryRow(ctx, createCategorySQL,
		c.Name, c.Description, c.SortOrder, c.ParentID, c.Active,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("creating category %q: %w", c.Name, err)
	}
	return nil
}

// Update rewrites the category row.
func (r *CategoryRepository) Update(ctx context.Context, c *category.Category) error {
	tag, err := r.pool.Exec(ctx, updateCategorySQL,
		c.ID, c.Name, c.Description, c.SortOrder, c.ParentID, c.Active,
	)
	if err != nil {
		return fmt.Errorf("updating category %d: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return category.ErrNotFound
	}
	return nil
}

func scanCategory(row pgx.CollectableRow) (*category.Category, error) {
	var c category.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.SortOrder, &c.ParentID, &c.Active)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
