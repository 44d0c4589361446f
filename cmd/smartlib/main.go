// Command smartlib runs the library services: the loan orchestrator and the
// reference inventory and identity services it coordinates.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"smartlib/internal/platform/config"
	"smartlib/internal/platform/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is what every subcommand gets after config loading.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
}

type loader func() (*app, error)

func newRootCommand() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "smartlib",
		Short:         "Library loan services",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file overlaid on defaults; env vars still win")

	load := func() (*app, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return &app{
			cfg:      cfg,
			logger:   logger.New(cfg.Log.Format, cfg.Log.Level),
			registry: reg,
		}, nil
	}

	root.AddCommand(
		newLoansCommand(load),
		newBooksCommand(load),
		newUsersCommand(load),
		newOverdueCommand(load),
	)
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newRootRouter mounts the operational endpoints shared by every service.
func newRootRouter(rt *app, health func(context.Context) error) chi.Router {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(req.Context()); err != nil {
				rt.logger.WarnContext(req.Context(), "health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}
