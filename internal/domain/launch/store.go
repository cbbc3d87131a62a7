package launch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kofuk/premises-sub000/internal/infrastructure/logging"
	"github.com/kofuk/premises-sub000/internal/infrastructure/monitoring"
	"github.com/kofuk/premises-sub000/internal/shared/swr"
	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("config store closed")

// configKey is the single cache key of the pending configuration.
const configKey = "/api/v1/config"

// API is the subset of the control panel client the store needs.
type API interface {
	GetConfig(ctx context.Context) (types.ConfigAndValidity, error)
	UpdateConfig(ctx context.Context, partial types.PendingConfig) (types.ConfigAndValidity, error)
	Launch(ctx context.Context) error
	Reconfigure(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Store edits the server-held pending configuration. The local copy is only
// ever replaced by a server response: reads adopt GET results and writes
// adopt the merged config the PUT returns.
type Store struct {
	api     API
	cache   *swr.Cache[types.ConfigAndValidity]
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu     sync.Mutex
	closed bool
	nextID int
	subs   map[int]chan types.ConfigAndValidity
}

// NewStore returns an empty store; the config is fetched on first Read.
func NewStore(api API, log *logging.Logger, metrics *monitoring.Metrics) *Store {
	return &Store{
		api:     api,
		cache:   swr.New[types.ConfigAndValidity](),
		log:     logging.OrNop(log).Named("launch"),
		metrics: metrics,
		subs:    make(map[int]chan types.ConfigAndValidity),
	}
}

// Read returns the cached config, fetching it if nothing is cached.
func (s *Store) Read(ctx context.Context) (types.ConfigAndValidity, error) {
	if s.isClosed() {
		return types.ConfigAndValidity{}, ErrClosed
	}
	v, err := s.cache.Get(ctx, configKey, s.api.GetConfig)
	if err != nil {
		return v, fmt.Errorf("read config: %w", err)
	}
	s.publish(v)
	return v, nil
}

// Refresh refetches the config regardless of the cache.
func (s *Store) Refresh(ctx context.Context) (types.ConfigAndValidity, error) {
	if s.isClosed() {
		return types.ConfigAndValidity{}, ErrClosed
	}
	v, err := s.cache.Revalidate(ctx, configKey, s.api.GetConfig)
	if err != nil {
		return v, fmt.Errorf("refresh config: %w", err)
	}
	s.publish(v)
	return v, nil
}

// Peek returns the cached config without fetching.
func (s *Store) Peek() (types.ConfigAndValidity, bool) {
	return s.cache.Peek(configKey)
}

// Write sends partial to the server, which merges it and recomputes
// validity. Writes are serialized; each one replaces the cache with the
// server's response, so a Read after Write returns reflects it.
func (s *Store) Write(ctx context.Context, partial types.PendingConfig) (types.ConfigAndValidity, error) {
	if s.isClosed() {
		return types.ConfigAndValidity{}, ErrClosed
	}

	v, err := s.cache.Mutate(ctx, configKey, func(ctx context.Context) (types.ConfigAndValidity, error) {
		return s.api.UpdateConfig(ctx, partial)
	})
	if err != nil {
		s.metrics.RecordConfigWrite("failure", false)
		s.log.Warn("config write failed", zap.Error(err))
		return v, fmt.Errorf("write config: %w", err)
	}

	s.metrics.RecordConfigWrite("success", v.IsValid)
	s.publish(v)
	return v, nil
}

// Invalidate drops the cached config after a change made elsewhere.
func (s *Store) Invalidate() {
	s.cache.Invalidate(configKey)
}

// Launch starts the server. The server validates the config; the store does
// not check IsValid first.
func (s *Store) Launch(ctx context.Context) error {
	return s.command(ctx, "launch", s.api.Launch)
}

// Reconfigure restarts the running server with the pending config.
func (s *Store) Reconfigure(ctx context.Context) error {
	return s.command(ctx, "reconfigure", s.api.Reconfigure)
}

// Stop stops the running server.
func (s *Store) Stop(ctx context.Context) error {
	return s.command(ctx, "stop", s.api.Stop)
}

func (s *Store) command(ctx context.Context, name string, fn func(context.Context) error) error {
	if s.isClosed() {
		return ErrClosed
	}
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	s.log.Info("command accepted", zap.String("command", name))
	// The server may normalize the config when it accepts a command.
	s.Invalidate()
	return nil
}

// Subscribe returns a channel receiving the config after every successful
// read or write. Slow readers only see the latest value. The channel is
// closed by the returned function or by Close.
func (s *Store) Subscribe() (<-chan types.ConfigAndValidity, func()) {
	ch := make(chan types.ConfigAndValidity, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Close detaches the store from its consumers. Operations still in flight
// run to completion but their results are no longer published.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) publish(v types.ConfigAndValidity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
