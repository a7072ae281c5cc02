// Command catalog-import bulk-loads merchant catalog exports into the
// database. Exports are gzipped NDJSON files (catalog1.ndjson.gz,
// catalog2.ndjson.gz, ...) where each line is one product with its variants.
//
// The same variant SKU can appear in several export files. Earlier files win:
// pass 1 builds a bloom filter of the SKUs in each file, pass 2 replays the
// files in order and skips variants whose SKU an earlier file already
// claimed.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/catalog-engine/internal/domain/product"
	"github.com/xenking/catalog-engine/internal/domain/stock"
	"github.com/xenking/catalog-engine/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// productLine is one decoded NDJSON export line.
type productLine struct {
	MerchantID   string
	MerchantName string
	CategoryID   int64
	Name         string
	Price        decimal.Decimal
	Active       bool
	Variants     []variantLine
}

type variantLine struct {
	SKU   string
	Size  string
	Color string
	Stock int
}

func main() {
	var (
		dataDir     string
		numFiles    int
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalogN.ndjson.gz files")
	flag.IntVar(&numFiles, "files", 1, "number of export files to ingest")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, numFiles, databaseURL); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, dataDir string, numFiles int, databaseURL string) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("catalog%d.ndjson.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build per-file SKU bloom filters concurrently.
	slog.Info("pass 1: building SKU filters", slog.Int("files", numFiles))

	filters, err := buildSKUFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build SKU filters")
	}

	// Pass 2: decode and write, earlier files claiming SKUs first.
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	w := &writer{
		merchants: &pgMerchantStore{pool: pool},
		products:  repository.NewProductRepository(pool),
		variants:  repository.NewVariantRepository(pool),
	}
	for i, f := range files {
		if err := importFile(ctx, i, f, filters, w); err != nil {
			return errors.Wrapf(err, "import file %d", i+1)
		}
	}

	slog.Info("import summary",
		slog.Int64("products", w.productCount),
		slog.Int64("variants", w.variantCount),
		slog.Int64("skipped_variants", w.skippedCount),
	)
	return nil
}

// buildSKUFilters creates one bloom filter per file, concurrently.
func buildSKUFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		err := streamGzFile(ctx, path, func(line []byte) error {
			p, err := decodeProductLine(line)
			if err != nil {
				return err
			}
			for _, v := range p.Variants {
				filter.AddString(v.SKU)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("file", idx+1),
						slog.Uint64("skus", count),
					)
				}
			}
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_skus", count),
		)

		filters[idx] = filter
		return nil
	}
}

// merchantStore creates merchant rows the imported products reference.
type merchantStore interface {
	Ensure(ctx context.Context, id, name string) error
}

const ensureMerchantSQL = `INSERT INTO merchants (id, name)
	VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`

type pgMerchantStore struct {
	pool *pgxpool.Pool
}

func (s *pgMerchantStore) Ensure(ctx context.Context, id, name string) error {
	_, err := s.pool.Exec(ctx, ensureMerchantSQL, id, name)
	return err
}

type writer struct {
	merchants merchantStore
	products  product.Repository
	variants  stock.Repository

	knownMerchants map[string]struct{}

	productCount int64
	variantCount int64
	skippedCount int64
}

// importFile decodes one export file and writes its products, skipping
// variants whose SKU an earlier file's filter claims.
func importFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter, w *writer) error {
	var lines uint64

	err := streamGzFile(ctx, path, func(line []byte) error {
		lines++
		if lines%progressEvery == 0 {
			slog.Info("pass 2 progress",
				slog.Int("file", idx+1),
				slog.Uint64("lines", lines),
			)
		}

		p, err := decodeProductLine(line)
		if err != nil {
			return err
		}

		kept := p.Variants[:0]
		for _, v := range p.Variants {
			if claimedEarlier(v.SKU, filters[:idx]) {
				w.skippedCount++
				continue
			}
			kept = append(kept, v)
		}
		p.Variants = kept

		if len(p.Variants) == 0 {
			return nil
		}
		return w.write(ctx, p)
	})
	if err != nil {
		return err
	}

	slog.Info("pass 2 complete",
		slog.Int("file", idx+1),
		slog.Uint64("lines", lines),
	)
	return nil
}

// claimedEarlier reports whether any earlier file's filter contains the SKU.
func claimedEarlier(sku string, earlier []*bloom.BloomFilter) bool {
	for _, f := range earlier {
		if f.TestString(sku) {
			return true
		}
	}
	return false
}

func (w *writer) write(ctx context.Context, p *productLine) error {
	if err := w.ensureMerchant(ctx, p); err != nil {
		return err
	}

	prod := &product.Product{
		MerchantID: p.MerchantID,
		CategoryID: p.CategoryID,
		Name:       p.Name,
		Price:      p.Price,
		Active:     p.Active,
	}
	if err := w.products.Create(ctx, prod); err != nil {
		return errors.Wrapf(err, "create product %q", p.Name)
	}
	w.productCount++

	for _, v := range p.Variants {
		err := w.variants.Create(ctx, &stock.Variant{
			ProductID: prod.ID,
			Size:      v.Size,
			Color:     v.Color,
			Stock:     v.Stock,
		})
		if err != nil {
			return errors.Wrapf(err, "create variant %s of product %q", v.SKU, p.Name)
		}
		w.variantCount++
	}
	return nil
}

// ensureMerchant creates the merchant row on first sight so product inserts
// never hit the merchant foreign key. Exports without a merchant_name fall
// back to the merchant id.
func (w *writer) ensureMerchant(ctx context.Context, p *productLine) error {
	if _, ok := w.knownMerchants[p.MerchantID]; ok {
		return nil
	}

	name := p.MerchantName
	if name == "" {
		name = p.MerchantID
	}
	if err := w.merchants.Ensure(ctx, p.MerchantID, name); err != nil {
		return errors.Wrapf(err, "ensure merchant %s", p.MerchantID)
	}

	if w.knownMerchants == nil {
		w.knownMerchants = make(map[string]struct{})
	}
	w.knownMerchants[p.MerchantID] = struct{}{}
	return nil
}

// decodeProductLine parses one NDJSON export line.
func decodeProductLine(line []byte) (*productLine, error) {
	var p productLine
	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "merchant_id":
			v, err := d.Str()
			p.MerchantID = v
			return err
		case "merchant_name":
			v, err := d.Str()
			p.MerchantName = v
			return err
		case "category_id":
			v, err := d.Int64()
			p.CategoryID = v
			return err
		case "name":
			v, err := d.Str()
			p.Name = v
			return err
		case "price":
			s, err := d.Str()
			if err != nil {
				return err
			}
			p.Price, err = decimal.NewFromString(s)
			return err
		case "active":
			v, err := d.Bool()
			p.Active = v
			return err
		case "variants":
			return d.Arr(func(d *jx.Decoder) error {
				v, err := decodeVariant(d)
				if err != nil {
					return err
				}
				p.Variants = append(p.Variants, v)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode product line")
	}
	return &p, nil
}

func decodeVariant(d *jx.Decoder) (variantLine, error) {
	var v variantLine
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "sku":
			s, err := d.Str()
			v.SKU = s
			return err
		case "size":
			s, err := d.Str()
			v.Size = s
			return err
		case "color":
			s, err := d.Str()
			v.Color = s
			return err
		case "stock":
			n, err := d.Int()
			v.Stock = n
			return err
		default:
			return d.Skip()
		}
	})
	return v, err
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
