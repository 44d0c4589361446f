package main

import (
	"context"

	"github.com/spf13/cobra"

	identityhandler "smartlib/internal/identity/handler"
	identityservice "smartlib/internal/identity/service"
	identitystore "smartlib/internal/identity/store"
	inventoryhandler "smartlib/internal/inventory/handler"
	inventoryservice "smartlib/internal/inventory/service"
	inventorystore "smartlib/internal/inventory/store"
	"smartlib/internal/platform/httpserver"
	"smartlib/internal/platform/metrics"
	"smartlib/internal/platform/postgres"
)

func newBooksCommand(load loader) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Serve the inventory service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				rt.cfg.Inventory.Addr = addr
			}
			ctx, stop := signalContext()
			defer stop()

			store, health, closeStore, err := openInventoryStore(ctx, rt)
			if err != nil {
				return err
			}
			defer closeStore()

			svc, err := inventoryservice.New(store, inventoryservice.WithLogger(rt.logger))
			if err != nil {
				return err
			}
			router := newRootRouter(rt, health)
			inventoryhandler.New(svc, rt.logger, metrics.New("inventory", rt.registry)).Register(router)
			return httpserver.Run(ctx, httpserver.New(rt.cfg.Inventory.Addr, router), rt.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides inventory.addr)")
	return cmd
}

// openInventoryStore uses PostgreSQL when inventory.database_url is set.
func openInventoryStore(ctx context.Context, rt *app) (inventoryservice.Store, func(context.Context) error, func(), error) {
	if rt.cfg.Inventory.DatabaseURL == "" {
		return inventorystore.NewInMemory(), nil, func() {}, nil
	}
	pool, err := postgres.NewPool(ctx, rt.cfg.Inventory.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	store := inventorystore.NewPostgres(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return store, pool.Ping, pool.Close, nil
}

func newUsersCommand(load loader) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Serve the identity service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				rt.cfg.Identity.Addr = addr
			}
			ctx, stop := signalContext()
			defer stop()

			svc, err := identityservice.New(identitystore.NewInMemory(), identityservice.WithLogger(rt.logger))
			if err != nil {
				return err
			}
			router := newRootRouter(rt, nil)
			identityhandler.New(svc, rt.logger, metrics.New("identity", rt.registry)).Register(router)
			return httpserver.Run(ctx, httpserver.New(rt.cfg.Identity.Addr, router), rt.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides identity.addr)")
	return cmd
}
