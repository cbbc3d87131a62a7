// Command premises-fake serves an in-memory control panel for local
// development of gamectl and other clients.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kofuk/premises-sub000/internal/api/middleware"
	"github.com/kofuk/premises-sub000/internal/fake/controlpanel"
	"github.com/kofuk/premises-sub000/internal/infrastructure/logging"
	"github.com/kofuk/premises-sub000/internal/infrastructure/monitoring"
	"github.com/kofuk/premises-sub000/internal/shared/types"
)

type options struct {
	addr        string
	user        string
	password    string
	initialized bool
	stepDelay   time.Duration
	sysstat     time.Duration
	origins     []string
	dev         bool
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:          "premises-fake",
		Short:        "Serve an in-memory premises control panel",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", ":8000", "listen address")
	flags.StringVar(&opts.user, "user", "admin", "seeded user name")
	flags.StringVar(&opts.password, "password", "password1", "seeded user password")
	flags.BoolVar(&opts.initialized, "initialized", true, "seed the user as initialized (false forces a password change)")
	flags.DurationVar(&opts.stepDelay, "step-delay", time.Second, "delay between simulated status transitions")
	flags.DurationVar(&opts.sysstat, "sysstat-interval", 2*time.Second, "interval between CPU samples while running")
	flags.StringSliceVar(&opts.origins, "cors-origin", nil, "allowed browser origins")
	flags.BoolVar(&opts.dev, "dev", false, "development logging")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	log := logging.NewDefault()
	if opts.dev {
		log = logging.NewDevelopment()
	}
	defer log.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	limits := middleware.DefaultRateLimitConfig()
	fake := controlpanel.New(controlpanel.Options{
		Logger:      log,
		Metrics:     metrics,
		StepDelay:   opts.stepDelay,
		RateLimit:   &limits,
		CORSOrigins: opts.origins,
		Development: opts.dev,
	})
	defer fake.Close()

	if err := fake.AddUser(opts.user, opts.password, opts.initialized); err != nil {
		return fmt.Errorf("seed user: %w", err)
	}
	fake.SetWorlds([]types.World{{
		WorldName: "main",
		Generations: []types.WorldGeneration{
			{Gen: "2024-06-01T00:00:00Z", ID: "main/2024-06-01.tar.zst", Timestamp: 1717200000000},
		},
	}})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", fake.Handler())

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go publishSysstat(ctx, fake, opts.sysstat)

	errCh := make(chan error, 1)
	go func() {
		log.Info("fake control panel listening",
			zap.String("addr", opts.addr),
			logging.User(opts.user))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	// Streams stay open until closed, so end them before draining.
	fake.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func publishSysstat(ctx context.Context, fake *controlpanel.Server, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	usage := 20.0
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !fake.Running() {
				continue
			}
			usage = min(100, max(0, usage+rand.NormFloat64()*8))
			fake.PublishSysstat(types.SysstatEvent{CPUUsage: usage, Time: now.UnixMilli()})
		}
	}
}
