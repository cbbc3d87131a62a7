package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kofuk/premises-sub000/internal/api/client"
	"github.com/kofuk/premises-sub000/internal/api/stream"
	"github.com/kofuk/premises-sub000/internal/domain/launch"
	"github.com/kofuk/premises-sub000/internal/domain/session"
	"github.com/kofuk/premises-sub000/internal/domain/status"
	"github.com/kofuk/premises-sub000/internal/domain/wizard"
	"github.com/kofuk/premises-sub000/internal/i18n"
	"github.com/kofuk/premises-sub000/internal/infrastructure/config"
	"github.com/kofuk/premises-sub000/internal/infrastructure/logging"
	"github.com/kofuk/premises-sub000/internal/infrastructure/monitoring"
)

var (
	// ErrNotLoggedIn is returned when a view that needs a session is
	// mounted without one.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("app closed")
)

// App owns the client-side stores for one control panel. Everything is
// created in New and released in Close; nothing is global.
type App struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics *monitoring.Metrics
	catalog *i18n.Catalog
	api     *client.Client
	streams *stream.Client
	session *session.Store
	toasts  *Toasts

	mu       sync.Mutex
	closed   bool
	consoles map[*Console]struct{}
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger shared by every store.
func WithLogger(l *logging.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithMetrics sets the metrics sink shared by every store.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New builds the API client, the stream client and the session store. The
// session is unknown until Start.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, consoles: make(map[*Console]struct{})}
	for _, opt := range opts {
		opt(a)
	}
	a.log = logging.OrNop(a.log)

	catalog, err := i18n.New(cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	a.catalog = catalog

	a.api, err = client.New(cfg,
		client.WithLogger(a.log),
		client.WithMetrics(a.metrics),
		client.WithCatalog(catalog))
	if err != nil {
		return nil, err
	}

	a.toasts = NewToasts(catalog, 0)
	a.session = session.NewStore(a.api, a.log)
	a.streams = stream.New(a.api.HTTPClient(), a.api.BaseURL(), stream.Options{
		Token:        a.api.Token,
		Notifier:     a.toasts,
		RetryInitial: cfg.Stream.RetryInitial,
		RetryMax:     cfg.Stream.RetryMax,
		Logger:       a.log,
		Metrics:      a.metrics,
	})

	return a, nil
}

// Start performs the first authoritative session read.
func (a *App) Start(ctx context.Context) (session.State, error) {
	return a.session.Refresh(ctx)
}

// API returns the REST client.
func (a *App) API() *client.Client {
	return a.api
}

// Catalog returns the message catalog.
func (a *App) Catalog() *i18n.Catalog {
	return a.catalog
}

// Session returns the session store.
func (a *App) Session() *session.Store {
	return a.session
}

// Toasts returns the notification queue fed by every console.
func (a *App) Toasts() *Toasts {
	return a.toasts
}

// NewConfigStore returns a config store for one mounted wizard. The caller
// closes it when the wizard goes away.
func (a *App) NewConfigStore() *launch.Store {
	return launch.NewStore(a.api, a.log, a.metrics)
}

// NewWizard returns a loaded wizard backed by a fresh config store. The
// returned release func closes the store.
func (a *App) NewWizard(ctx context.Context, mode wizard.Mode) (*wizard.Wizard, func(), error) {
	if _, err := a.requireLogin(ctx); err != nil {
		return nil, nil, err
	}

	store := a.NewConfigStore()
	w := wizard.New(store, mode)
	if err := w.Load(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return w, store.Close, nil
}

// MountConsole opens a status view: a fresh status store fed by its own
// stream. It waits for the session to be known and fails with
// ErrNotLoggedIn without a session. The console is released by Close or
// when ctx is done.
func (a *App) MountConsole(ctx context.Context) (*Console, error) {
	if _, err := a.requireLogin(ctx); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}

	st := status.NewStore(a.catalog, a.cfg.Stream.CPUBufferSize, a.log, a.metrics)
	conn := a.streams.WithSinks(st, st).Connect(ctx)
	c := newConsole(st, conn, a.forget)
	a.consoles[c] = struct{}{}

	a.log.Debug("console mounted", logging.StreamID(conn.ID().String()))
	return c, nil
}

func (a *App) requireLogin(ctx context.Context) (session.State, error) {
	st, err := a.session.WaitKnown(ctx)
	if err != nil {
		return st, err
	}
	if !st.LoggedIn {
		return st, ErrNotLoggedIn
	}
	return st, nil
}

func (a *App) forget(c *Console) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.consoles, c)
}

// Close releases every mounted console. The App cannot be used afterwards.
func (a *App) Close() {
	a.mu.Lock()
	a.closed = true
	consoles := make([]*Console, 0, len(a.consoles))
	for c := range a.consoles {
		consoles = append(consoles, c)
	}
	a.mu.Unlock()

	for _, c := range consoles {
		c.Close()
	}
}
