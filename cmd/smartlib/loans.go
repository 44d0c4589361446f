package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"smartlib/internal/gateway"
	"smartlib/internal/loan/adapters"
	"smartlib/internal/loan/cache"
	"smartlib/internal/loan/events"
	loanhandler "smartlib/internal/loan/handler"
	"smartlib/internal/loan/ledger"
	loanmetrics "smartlib/internal/loan/metrics"
	"smartlib/internal/loan/service"
	loanstore "smartlib/internal/loan/store"
	"smartlib/internal/loan/worker"
	"smartlib/internal/platform/httpserver"
	"smartlib/internal/platform/kafka"
	"smartlib/internal/platform/metrics"
	"smartlib/internal/platform/postgres"
	"smartlib/internal/platform/redis"
)

const (
	eventTopicPartitions = 3
	eventTopicReplicas   = 1
)

func newLoansCommand(load loader) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Serve the loan API and run the periodic overdue sweep",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				rt.cfg.Loans.Addr = addr
			}
			ctx, stop := signalContext()
			defer stop()
			return serveLoans(ctx, rt)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides loans.addr)")
	return cmd
}

func serveLoans(ctx context.Context, rt *app) error {
	svc, health, closeAll, err := buildLoanService(ctx, rt)
	if err != nil {
		return err
	}
	defer closeAll()

	router := newRootRouter(rt, health)
	loanhandler.New(svc, rt.logger, metrics.New("loans", rt.registry), rt.cfg.Loans.HandlerTimeout).Register(router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(ctx, httpserver.New(rt.cfg.Loans.Addr, router), rt.logger)
	})
	if interval := rt.cfg.Loans.OverdueSweepInterval; interval > 0 {
		g.Go(func() error {
			err := worker.NewOverdueWorker(svc, interval, rt.logger).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// buildLoanService wires the saga to its collaborators. Redis and Kafka are
// optional: without them the service runs uncached and logs its events.
func buildLoanService(ctx context.Context, rt *app) (*service.Service, func(context.Context) error, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*service.Service, func(context.Context) error, func(), error) {
		closeAll()
		return nil, nil, nil, err
	}

	gwCfg := gateway.Config{
		Timeout:     rt.cfg.Gateway.Timeout,
		MaxRetries:  rt.cfg.Gateway.MaxRetries,
		BackoffBase: rt.cfg.Gateway.BackoffBase,
	}
	gwOpts := []gateway.Option{
		gateway.WithLogger(rt.logger),
		gateway.WithMetrics(gateway.NewMetrics(rt.registry)),
		gateway.WithTracerProvider(otel.GetTracerProvider()),
	}
	identity := adapters.NewIdentityClient(gateway.New("identity", rt.cfg.Loans.IdentityURL, gwCfg, gwOpts...))
	inventory := adapters.NewInventoryClient(gateway.New("inventory", rt.cfg.Loans.InventoryURL, gwCfg, gwOpts...))

	store, closeStore, err := openLedgerStore(ctx, rt)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeStore)

	opts := []service.Option{
		service.WithLogger(rt.logger),
		service.WithMetrics(loanmetrics.New(rt.registry)),
		service.WithTracerProvider(otel.GetTracerProvider()),
		service.WithCompensation(rt.cfg.Loans.CompensateOnFailure),
		service.WithPublishTimeout(rt.cfg.Loans.PublishTimeout),
	}

	var health func(context.Context) error
	rc, err := redis.New(ctx, rt.cfg.Redis)
	if err != nil {
		return fail(err)
	}
	if rc != nil {
		closers = append(closers, func() { _ = rc.Close() })
		opts = append(opts, service.WithBookCache(cache.NewRedis(rc.Client, cache.WithTTL(rt.cfg.Redis.BookCacheTTL))))
		health = rc.Health
	}

	kc, err := kafka.NewClient(rt.cfg.Kafka)
	if err != nil {
		return fail(err)
	}
	if kc != nil {
		closers = append(closers, kc.Close)
		if err := kafka.EnsureTopic(ctx, kc, rt.cfg.Kafka.Topic, eventTopicPartitions, eventTopicReplicas); err != nil {
			return fail(err)
		}
		opts = append(opts, service.WithEventPublisher(events.NewKafkaPublisher(kc, rt.cfg.Kafka.Topic, events.WithLogger(rt.logger))))
	} else {
		opts = append(opts, service.WithEventPublisher(events.NewLogPublisher(rt.logger)))
	}

	svc, err := service.New(identity, inventory, ledger.New(store), opts...)
	if err != nil {
		return fail(err)
	}
	return svc, health, closeAll, nil
}

// openLedgerStore picks the loan store for database.driver.
func openLedgerStore(ctx context.Context, rt *app) (ledger.Store, func(), error) {
	switch rt.cfg.Database.Driver {
	case "", "memory":
		return loanstore.NewInMemory(), func() {}, nil
	case "postgres", "sqlite":
		db, err := postgres.OpenSQL(ctx, rt.cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store := loanstore.NewPostgres(db)
		if rt.cfg.Database.Driver == "sqlite" {
			store = loanstore.NewSQLite(db)
		}
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", rt.cfg.Database.Driver)
	}
}
