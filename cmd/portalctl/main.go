// Command portalctl is the operator tool: doctor import and sample data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harentsoaR/dermacare-api/internal/app"
	"github.com/harentsoaR/dermacare-api/internal/config"
	"github.com/harentsoaR/dermacare-api/internal/logger"
	"github.com/harentsoaR/dermacare-api/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "portalctl",
		Short:        "Operator commands for the dermacare portal",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(importDoctorsCmd())
	rootCmd.AddCommand(seedSampleCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what every subcommand needs: an open store and the services on it.
type env struct {
	store store.Store
	svc   *app.Services
}

func openEnv(ctx context.Context) (*env, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.LogLevel)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	st, err := app.OpenStore(connectCtx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	svc, err := app.NewServices(cfg, st, log, nil)
	if err != nil {
		_ = st.Close(ctx)
		return nil, nil, err
	}
	closer := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = st.Close(closeCtx)
	}
	return &env{store: st, svc: svc}, closer, nil
}
