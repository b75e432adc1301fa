// Command seed-db creates the schema and upserts merchants from a JSON file.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/merchant-catalog/internal/domain/merchant"
	"github.com/xenking/merchant-catalog/internal/storage/postgres"
)

func main() {
	var (
		databaseURL   string
		merchantsFile string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&merchantsFile, "merchants-file", "db/seed/merchants.json", "path to merchants JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		return run(ctx, lg, databaseURL, merchantsFile)
	})
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, merchantsFile string) error {
	data, err := os.ReadFile(merchantsFile)
	if err != nil {
		return errors.Wrap(err, "read merchants file")
	}
	merchants, err := decodeMerchants(data)
	if err != nil {
		return errors.Wrap(err, "parse merchants file")
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL, postgres.PoolConfig{MaxConns: 2})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewMerchantRepository(pool)
	for i := range merchants {
		m := &merchants[i]
		if err := repo.Upsert(ctx, m); err != nil {
			return errors.Wrapf(err, "upsert merchant %s", m.StoreURL)
		}
		lg.Info("Upserted merchant",
			zap.Int64("id", m.ID),
			zap.String("name", m.Name),
			zap.String("store_url", m.StoreURL),
		)
	}

	lg.Info("Seed completed", zap.Int("merchants", len(merchants)))
	return nil
}

// decodeMerchants reads a JSON array of {name, email, store_url, status}
// objects. store_url is required.
func decodeMerchants(data []byte) ([]merchant.Merchant, error) {
	var out []merchant.Merchant
	d := jx.DecodeBytes(data)
	err := d.Arr(func(d *jx.Decoder) error {
		var m merchant.Merchant
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "name":
				m.Name, err = d.Str()
			case "email":
				m.Email, err = d.Str()
			case "store_url":
				m.StoreURL, err = d.Str()
			case "status":
				m.Status, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		if m.StoreURL == "" {
			return errors.Errorf("merchant %d: store_url is required", len(out))
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
