package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	catalog "github.com/xenking/merchant-catalog/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := catalog.LoadConfig()
		if err != nil {
			return err
		}
		return catalog.Run(ctx, lg, m, cfg)
	})
}
