// Package app wires configuration into a running store and service graph.
// Both binaries share it.
package app

import (
	"context"
	"fmt"

	"github.com/harentsoaR/dermacare-api/internal/config"
	"github.com/harentsoaR/dermacare-api/internal/store"
	"github.com/harentsoaR/dermacare-api/internal/store/memory"
	"github.com/harentsoaR/dermacare-api/internal/store/mongodb"
	"github.com/harentsoaR/dermacare-api/internal/store/postgres"
)

// OpenStore connects the driver named by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "mongo", "mongodb":
		st, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres", "postgresql":
		st, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory":
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}
