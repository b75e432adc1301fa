// Command catalog-ingest imports products from gzip-compressed NDJSON feeds.
//
// Every line holds one import payload, the same document accepted by
// POST /api/products/import:
//
//	{"store_url": "...", "product": {"id": "...", "title": "...", "variants": [...]}}
//
// Lines are validated and reconciled independently; invalid lines are counted
// and skipped. Files are processed concurrently.
package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/merchant-catalog/internal/domain/product"
	"github.com/xenking/merchant-catalog/internal/handler"
	"github.com/xenking/merchant-catalog/internal/storage/postgres"
)

const (
	bloomFPR      = 0.001
	maxLineBytes  = 4 << 20
	progressEvery = 10_000
)

type options struct {
	dataDir          string
	pattern          string
	databaseURL      string
	concurrency      int
	onlyNew          bool
	expectedProducts uint
}

func main() {
	var opts options
	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing feed files")
	flag.StringVar(&opts.pattern, "pattern", "*.ndjson.gz", "feed file glob inside data-dir")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opts.concurrency, "concurrency", 4, "files processed at once")
	flag.BoolVar(&opts.onlyNew, "only-new", false, "skip products that already exist instead of refreshing them")
	flag.UintVar(&opts.expectedProducts, "expected-products", 1_000_000, "bloom filter capacity used with --only-new")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		if opts.databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		return run(ctx, lg, opts)
	})
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	files, err := filepath.Glob(filepath.Join(opts.dataDir, opts.pattern))
	if err != nil {
		return errors.Wrap(err, "list feed files")
	}
	if len(files) == 0 {
		lg.Info("No feed files found", zap.String("dir", opts.dataDir), zap.String("pattern", opts.pattern))
		return nil
	}

	pool, err := postgres.NewPool(ctx, opts.databaseURL, postgres.PoolConfig{MaxConns: int32(max(opts.concurrency, 1)) + 1})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products := postgres.NewProductRepository(pool)
	svc, err := product.NewService(postgres.NewMerchantRepository(pool), products)
	if err != nil {
		return errors.Wrap(err, "create catalog service")
	}

	ing := &ingester{lg: lg, svc: svc}
	if opts.onlyNew {
		known, err := loadKnownProducts(ctx, products, opts.expectedProducts)
		if err != nil {
			return errors.Wrap(err, "load known products")
		}
		ing.known = known
		ing.store = products
		lg.Info("Loaded known products", zap.Uint32("approx_count", known.filter.ApproximatedSize()))
	}

	var total counts
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.concurrency, 1))
	for _, f := range files {
		g.Go(func() error {
			c, err := ing.ingestFile(ctx, f)
			if err != nil {
				return errors.Wrapf(err, "ingest %s", filepath.Base(f))
			}
			total.add(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	lg.Info("Ingest completed", append([]zap.Field{zap.Int("files", len(files))}, total.fields()...)...)
	return nil
}

// knownProducts is a negative cache of stored product keys. A miss proves the
// product is new; a hit must be confirmed against the database.
type knownProducts struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

func productKey(storeURL, externalID string) string {
	return storeURL + "\x00" + externalID
}

func loadKnownProducts(ctx context.Context, r *postgres.ProductRepository, capacity uint) (*knownProducts, error) {
	k := &knownProducts{filter: bloom.NewWithEstimates(max(capacity, 1024), bloomFPR)}
	err := r.ProductKeys(ctx, func(storeURL, externalID string) {
		k.filter.AddString(productKey(storeURL, externalID))
	})
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (k *knownProducts) mayContain(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.filter.TestString(key)
}

func (k *knownProducts) add(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.filter.AddString(key)
}

// counts tallies line outcomes.
type counts struct {
	lines, created, updated, existing, invalid, conflicts atomic.Int64
}

func (c *counts) add(o *counts) {
	c.lines.Add(o.lines.Load())
	c.created.Add(o.created.Load())
	c.updated.Add(o.updated.Load())
	c.existing.Add(o.existing.Load())
	c.invalid.Add(o.invalid.Load())
	c.conflicts.Add(o.conflicts.Load())
}

func (c *counts) fields() []zap.Field {
	return []zap.Field{
		zap.Int64("lines", c.lines.Load()),
		zap.Int64("created", c.created.Load()),
		zap.Int64("updated", c.updated.Load()),
		zap.Int64("existing", c.existing.Load()),
		zap.Int64("invalid", c.invalid.Load()),
		zap.Int64("conflicts", c.conflicts.Load()),
	}
}

// importer is satisfied by *product.Service.
type importer interface {
	ImportProduct(ctx context.Context, req *product.ImportRequest) (*product.ImportResult, error)
}

// keyLookup is satisfied by *postgres.ProductRepository.
type keyLookup interface {
	ProductKeyExists(ctx context.Context, storeURL, externalID string) (bool, error)
}

type ingester struct {
	lg    *zap.Logger
	svc   importer
	store keyLookup
	known *knownProducts
}

func (in *ingester) ingestFile(ctx context.Context, path string) (*counts, error) {
	lg := in.lg.With(zap.String("file", filepath.Base(path)))
	c := &counts{}

	err := streamGzLines(ctx, path, func(lineNo int, line []byte) error {
		c.lines.Add(1)
		if err := in.ingestLine(ctx, line, c); err != nil {
			var verr *product.ValidationError
			if errors.As(err, &verr) || errors.Is(err, errMalformedLine) {
				c.invalid.Add(1)
				lg.Warn("Invalid line", zap.Int("line", lineNo), zap.Error(err))
				return nil
			}
			return errors.Wrapf(err, "line %d", lineNo)
		}
		if n := c.lines.Load(); n%progressEvery == 0 {
			lg.Info("Progress", zap.Int64("lines", n))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lg.Info("File completed", c.fields()...)
	return c, nil
}

var errMalformedLine = errors.New("malformed line")

func (in *ingester) ingestLine(ctx context.Context, line []byte, c *counts) error {
	req, err := handler.DecodeImportRequest(line)
	if err != nil {
		var verr *product.ValidationError
		if errors.As(err, &verr) {
			return err
		}
		return errors.Wrap(errMalformedLine, err.Error())
	}

	var key string
	if in.known != nil && req.Product != nil {
		key = productKey(req.StoreURL, req.Product.ID)
		if in.known.mayContain(key) {
			exists, err := in.store.ProductKeyExists(ctx, req.StoreURL, req.Product.ID)
			if err != nil {
				return err
			}
			if exists {
				c.existing.Add(1)
				return nil
			}
		}
	}

	res, err := in.importWithRetry(ctx, req, c)
	if err != nil {
		var notFound *product.MerchantNotFoundError
		if errors.As(err, &notFound) {
			verr := &product.ValidationError{}
			verr.Add("store_url", notFound.Error())
			return verr
		}
		return err
	}
	if res.Created {
		c.created.Add(1)
	} else {
		c.updated.Add(1)
	}
	if key != "" {
		in.known.add(key)
	}
	return nil
}

// importWithRetry retries an import once when a concurrent writer created the
// same product or variant first.
func (in *ingester) importWithRetry(ctx context.Context, req *product.ImportRequest, c *counts) (*product.ImportResult, error) {
	res, err := in.svc.ImportProduct(ctx, req)
	var conflict *product.ConflictError
	if errors.As(err, &conflict) {
		c.conflicts.Add(1)
		return in.svc.ImportProduct(ctx, req)
	}
	return res, err
}

// streamGzLines calls fn for every non-empty line of a gzip-compressed file.
func streamGzLines(ctx context.Context, path string, fn func(lineNo int, line []byte) error) error {
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
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
