package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kofuk/premises-sub000/internal/app"
	"github.com/kofuk/premises-sub000/internal/infrastructure/config"
	"github.com/kofuk/premises-sub000/internal/infrastructure/logging"
	"github.com/kofuk/premises-sub000/internal/infrastructure/monitoring"
)

// Env is the process surroundings of a command run.
type Env struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdEnv returns the standard streams.
func StdEnv() Env {
	return Env{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

type globalOptions struct {
	profile     string
	url         string
	sessionFile string
	metricsAddr string
	locale      string
	debug       bool
}

// runtime is built once per invocation by the root pre-run hook.
type runtime struct {
	env    Env
	opts   globalOptions
	cfg    *config.Config
	log    *logging.Logger
	app    *app.App
	prompt *prompter

	metricsSrv *http.Server
}

// Execute runs gamectl with args and releases everything it opened, even
// when the command fails.
func Execute(ctx context.Context, env Env, args []string) error {
	rt := &runtime{env: env, prompt: newPrompter(env.In, env.Out)}
	cmd := newRootCmd(rt)
	cmd.SetArgs(args)
	cmd.SetIn(env.In)
	cmd.SetOut(env.Out)
	cmd.SetErr(env.Err)

	err := cmd.ExecuteContext(ctx)
	if closeErr := rt.close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "gamectl",
		Short: "Operate a premises game server control panel",
		Long: `gamectl drives a premises control panel from the terminal.

Log in once, then launch and watch the server:
  gamectl login
  gamectl wizard
  gamectl watch

The session is kept in a file so later commands reuse it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.setup(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.opts.profile, "profile", defaultPath("profile.toml"), "TOML profile")
	flags.StringVar(&rt.opts.url, "url", "", "control panel URL (overrides the profile)")
	flags.StringVar(&rt.opts.sessionFile, "session-file", defaultPath("session.json"), "where the login session is kept")
	flags.StringVar(&rt.opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.StringVar(&rt.opts.locale, "locale", "", "message language (en, ja)")
	flags.BoolVar(&rt.opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newLoginCmd(rt),
		newLogoutCmd(rt),
		newWhoamiCmd(rt),
		newStatusCmd(rt),
		newWatchCmd(rt),
		newConfigCmd(rt),
		newWizardCmd(rt),
		newLaunchCmd(rt),
		newReconfigureCmd(rt),
		newStopCmd(rt),
		newInfoCmd(rt),
		newWorldsCmd(rt),
		newVersionsCmd(rt),
		newSnapshotCmd(rt),
		newUndoCmd(rt),
		newUsersCmd(rt),
	)
	return root
}

func defaultPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "premises", name)
}

func (rt *runtime) setup(ctx context.Context) error {
	cfg, err := config.LoadFile(rt.opts.profile)
	if err != nil {
		return err
	}
	if rt.opts.url != "" {
		cfg.API.BaseURL = rt.opts.url
	}
	if rt.opts.locale != "" {
		cfg.Locale = rt.opts.locale
	}
	if rt.opts.metricsAddr != "" {
		cfg.Metrics.Addr = rt.opts.metricsAddr
	}
	rt.cfg = cfg

	logCfg := logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development}
	if rt.opts.debug {
		logCfg = logging.DevelopmentConfig()
	}
	if rt.log, err = logging.New(logCfg); err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	var metrics *monitoring.Metrics
	if cfg.Metrics.Addr != "" {
		metrics = rt.serveMetrics(cfg.Metrics.Addr)
	}

	rt.app, err = app.New(cfg, app.WithLogger(rt.log), app.WithMetrics(metrics))
	if err != nil {
		return err
	}

	if err := loadSession(rt.opts.sessionFile, cfg.API.BaseURL, rt.app.API()); err != nil {
		rt.log.Warn("ignoring saved session", zap.Error(err))
	}
	if _, err := rt.app.Start(ctx); err != nil {
		return fmt.Errorf("contact control panel: %w", err)
	}
	return nil
}

func (rt *runtime) serveMetrics(addr string) *monitoring.Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	rt.metricsSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		rt.log.Info("serving metrics", zap.String("addr", addr))
		if err := rt.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return metrics
}

// close persists the session and releases the app.
func (rt *runtime) close() error {
	var err error
	if rt.app != nil {
		err = saveSession(rt.opts.sessionFile, rt.cfg.API.BaseURL, rt.app.API())
		rt.app.Close()
	}
	if rt.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rt.metricsSrv.Shutdown(ctx)
	}
	if rt.log != nil {
		_ = rt.log.Sync()
	}
	return err
}

// requireLogin fails early with a hint instead of a 401 from the server.
func (rt *runtime) requireLogin() error {
	if !rt.app.Session().LoggedIn() {
		return errors.New("not logged in (run gamectl login)")
	}
	return nil
}

func (rt *runtime) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(rt.env.Out, format, args...)
}

func (rt *runtime) text(key string) string {
	return rt.app.Catalog().Text(key)
}
