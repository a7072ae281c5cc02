// Command seed-db loads demo catalog data for local development: merchants,
// a small category tree, and products with variants and images.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-engine/internal/domain/category"
	"github.com/xenking/catalog-engine/internal/domain/image"
	"github.com/xenking/catalog-engine/internal/domain/product"
	"github.com/xenking/catalog-engine/internal/domain/stock"
	"github.com/xenking/catalog-engine/internal/repository"
)

type seedFile struct {
	Merchants []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"merchants"`
	Categories []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		SortOrder   int    `json:"sort_order"`
		Parent      string `json:"parent"`
	} `json:"categories"`
	Products []struct {
		Merchant string          `json:"merchant"`
		Category string          `json:"category"`
		Name     string          `json:"name"`
		Price    decimal.Decimal `json:"price"`
		Active   bool            `json:"active"`
		Variants []struct {
			Size  string `json:"size"`
			Color string `json:"color"`
			Stock int    `json:"stock"`
		} `json:"variants"`
		Images []struct {
			URL string `json:"url"`
			Alt string `json:"alt"`
		} `json:"images"`
	} `json:"products"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to catalog seed JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedMerchants(ctx, pool, seed); err != nil {
		return errors.Wrap(err, "seed merchants")
	}

	categoryIDs, err := seedCategories(ctx, pool, seed)
	if err != nil {
		return errors.Wrap(err, "seed categories")
	}

	if err := seedProducts(ctx, pool, seed, categoryIDs); err != nil {
		return errors.Wrap(err, "seed products")
	}

	return nil
}

func seedMerchants(ctx context.Context, pool *pgxpool.Pool, seed seedFile) error {
	slog.Info("upserting merchants", slog.Int("count", len(seed.Merchants)))

	const upsertMerchantSQL = `INSERT INTO merchants (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	for _, m := range seed.Merchants {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			return errors.Wrapf(err, "parse merchant id %q", m.ID)
		}
		if _, err := pool.Exec(ctx, upsertMerchantSQL, id, m.Name); err != nil {
			return errors.Wrapf(err, "upsert merchant %s", m.ID)
		}
		slog.Info("upserted merchant", slog.String("id", m.ID), slog.String("name", m.Name))
	}
	return nil
}

// seedCategories creates the category tree in file order, so parents must be
// listed before their children. Returns a name to id lookup for products.
func seedCategories(ctx context.Context, pool *pgxpool.Pool, seed seedFile) (map[string]int64, error) {
	slog.Info("seeding categories", slog.Int("count", len(seed.Categories)))

	repo := repository.NewCategoryRepository(pool)
	ids := make(map[string]int64, len(seed.Categories))

	const categoryIDByNameSQL = `SELECT id FROM categories WHERE LOWER(name) = LOWER($1)`

	for _, c := range seed.Categories {
		var existing int64
		err := pool.QueryRow(ctx, categoryIDByNameSQL, c.Name).Scan(&existing)
		if err == nil {
			ids[c.Name] = existing
			slog.Info("category exists", slog.String("name", c.Name))
			continue
		}

		var parentID *int64
		if c.Parent != "" {
			id, ok := ids[c.Parent]
			if !ok {
				return nil, errors.Errorf("category %q references unknown parent %q", c.Name, c.Parent)
			}
			parentID = &id
		}

		cat := &category.Category{
			Name:        c.Name,
			Description: c.Description,
			SortOrder:   c.SortOrder,
			ParentID:    parentID,
			Active:      true,
		}
		if err := repo.Create(ctx, cat); err != nil {
			return nil, errors.Wrapf(err, "create category %q", c.Name)
		}
		ids[c.Name] = cat.ID
		slog.Info("created category", slog.String("name", c.Name), slog.Int64("id", cat.ID))
	}
	return ids, nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, seed seedFile, categoryIDs map[string]int64) error {
	slog.Info("seeding products", slog.Int("count", len(seed.Products)))

	products := repository.NewProductRepository(pool)
	variants := repository.NewVariantRepository(pool)
	images := image.NewManager(repository.NewImageRepository(pool), products)

	for _, p := range seed.Products {
		categoryID, ok := categoryIDs[p.Category]
		if !ok {
			return errors.Errorf("product %q references unknown category %q", p.Name, p.Category)
		}

		prod := &product.Product{
			MerchantID: p.Merchant,
			CategoryID: categoryID,
			Name:       p.Name,
			Price:      p.Price,
			Active:     p.Active,
		}
		if err := products.Create(ctx, prod); err != nil {
			return errors.Wrapf(err, "create product %q", p.Name)
		}

		for _, v := range p.Variants {
			err := variants.Create(ctx, &stock.Variant{
				ProductID: prod.ID,
				Size:      v.Size,
				Color:     v.Color,
				Stock:     v.Stock,
			})
			if err != nil {
				return errors.Wrapf(err, "create variant %s/%s of %q", v.Size, v.Color, p.Name)
			}
		}

		// The manager assigns main flag and positions the same way the
		// service does at runtime.
		for _, img := range p.Images {
			if _, err := images.Add(ctx, p.Merchant, prod.ID, img.URL, img.Alt); err != nil {
				return errors.Wrapf(err, "add image %s to %q", img.URL, p.Name)
			}
		}

		slog.Info("created product",
			slog.String("name", p.Name),
			slog.Int64("id", prod.ID),
			slog.Int("variants", len(p.Variants)),
			slog.Int("images", len(p.Images)),
		)
	}
	return nil
}
