package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/kofuk/premises-sub000/internal/infrastructure/logging"
	"github.com/kofuk/premises-sub000/internal/infrastructure/monitoring"
	"github.com/kofuk/premises-sub000/internal/shared/id"
	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// Event names carried on the status stream.
const (
	EventStatusChanged = "statuschanged"
	// EventStatusLegacy is the name the control panel has used for status
	// events; it is handled exactly like EventStatusChanged.
	EventStatusLegacy = "event"
	EventNotify       = "notify"
	EventSysstat      = "sysstat"
)

// Path is the stream endpoint relative to the control panel root.
const Path = "/api/streaming"

// ErrRejected ends a connection whose stream request was refused with 401
// or 403. Such a connection is not retried; Connect again after logging in.
var ErrRejected = errors.New("stream rejected by control panel")

// StatusSink receives status updates. A nil extra or page means the event
// did not carry that field.
type StatusSink interface {
	UpdateStatus(code types.EventCode, extra *types.StatusExtra, page *types.PageCode)
}

// CPUSink receives CPU usage samples.
type CPUSink interface {
	UpdateCPUUsage(sample types.SysstatEvent)
}

// Notifier receives transient notifications.
type Notifier interface {
	Notify(ev types.NotifyEvent)
}

// Options configures a Client. Sinks left nil are skipped.
type Options struct {
	// Token returns the bearer token to present; it is called on every
	// (re)connect so a refreshed token is picked up.
	Token        func() string
	Status       StatusSink
	CPU          CPUSink
	Notifier     Notifier
	RetryInitial time.Duration
	RetryMax     time.Duration
	Logger       *logging.Logger
	Metrics      *monitoring.Metrics
}

// Client opens status streams against one control panel.
type Client struct {
	http     *http.Client
	endpoint string
	opts     Options
	log      *logging.Logger
}

// New returns a stream client for the control panel at baseURL. hc supplies
// the transport and cookie jar; its overall timeout is not applied to the
// stream.
func New(hc *http.Client, baseURL string, opts Options) *Client {
	streamHTTP := *hc
	streamHTTP.Timeout = 0

	if opts.RetryInitial <= 0 {
		opts.RetryInitial = 3 * time.Second
	}
	if opts.RetryMax < opts.RetryInitial {
		opts.RetryMax = opts.RetryInitial
	}

	return &Client{
		http:     &streamHTTP,
		endpoint: baseURL + Path,
		opts:     opts,
		log:      logging.OrNop(opts.Logger).Named("stream"),
	}
}

// WithSinks returns a client sharing c's transport and settings that
// delivers status events and CPU samples to the given sinks.
func (c *Client) WithSinks(status StatusSink, cpu CPUSink) *Client {
	cp := *c
	cp.opts.Status = status
	cp.opts.CPU = cpu
	return &cp
}

// Conn is an open stream. It reconnects on its own until closed.
type Conn struct {
	id     id.StreamID
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

// ID identifies the connection in logs.
func (c *Conn) ID() id.StreamID {
	return c.id
}

// Done is closed once the connection has fully stopped.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection stopped on its own. It is nil while the
// connection runs and after Close or ctx cancellation.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close stops the connection and waits for its goroutine to exit. No sink is
// called after Close returns. Close must not be called from a sink.
func (c *Conn) Close() {
	c.once.Do(c.cancel)
	<-c.done
}

// Connect starts streaming in the background. The connection lives until
// Close is called or ctx is done.
func (c *Client) Connect(ctx context.Context) *Conn {
	ctx, cancel := context.WithCancel(ctx)
	conn := &Conn{
		id:     id.NewStreamID(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(conn.done)
		conn.err = c.run(ctx, conn.id)
	}()
	return conn
}

type loopState struct {
	lastID    string
	retryBase time.Duration
	delay     time.Duration
	// down is set once the outage has been reported so that a failing
	// reconnect does not repeat it.
	down bool
}

func (c *Client) run(ctx context.Context, streamID id.StreamID) error {
	log := c.log.With(logging.StreamID(streamID.String()))
	st := &loopState{retryBase: c.opts.RetryInitial, delay: c.opts.RetryInitial}

	for {
		err := c.session(ctx, st, log)
		c.opts.Metrics.SetStreamConnected(false)
		if ctx.Err() != nil {
			return nil
		}

		if errors.Is(err, ErrRejected) {
			log.Warn("stream rejected, not reconnecting", zap.Error(err))
			if !st.down {
				c.reportDisconnected()
			}
			return err
		}

		if !st.down {
			st.down = true
			log.Warn("stream disconnected", zap.Error(err))
			c.reportDisconnected()
		} else {
			log.Debug("reconnect failed", zap.Error(err), zap.Duration("retry_in", st.delay))
		}

		timer := time.NewTimer(st.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		c.opts.Metrics.IncStreamReconnects()
		st.delay = min(st.delay*2, max(c.opts.RetryMax, st.retryBase))
	}
}

// session performs one connection attempt and reads events until the
// stream fails. It always returns a non-nil error unless ctx was canceled.
func (c *Client) session(ctx context.Context, st *loopState, log *logging.Logger) error {
	req, err := c.newRequest(ctx, st.lastID)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrRejected, resp.Status)
	default:
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	c.opts.Metrics.SetStreamConnected(true)
	if st.down {
		log.Info("stream reconnected")
	}
	st.down = false
	st.delay = st.retryBase

	dec := NewDecoder(resp.Body)
	for {
		ev, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("stream closed by server")
			}
			return err
		}
		st.lastID = dec.LastID()

		if ev.Retry > 0 {
			st.retryBase = ev.Retry
			st.delay = ev.Retry
		}
		if ev.Data == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.dispatch(ev, log)
	}
}

func (c *Client) newRequest(ctx context.Context, lastID string) (*http.Request, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	if c.opts.Token != nil {
		if token := c.opts.Token(); token != "" {
			q := u.Query()
			q.Set("x-auth", "Bearer "+token)
			u.RawQuery = q.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-store")
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	return req, nil
}

func (c *Client) reportDisconnected() {
	if c.opts.Status != nil {
		c.opts.Status.UpdateStatus(types.EventDisconnected, nil, nil)
	}
}

// dispatch delivers one event. A malformed payload or a panicking sink
// drops that event only.
func (c *Client) dispatch(ev Event, log *logging.Logger) {
	defer func() {
		if r := recover(); r != nil {
			c.opts.Metrics.RecordStreamDrop(ev.Name)
			log.Error("event handler panicked", logging.Event(ev.Name), zap.Any("panic", r))
		}
	}()

	var err error
	switch ev.Name {
	case EventStatusChanged, EventStatusLegacy:
		var payload types.StatusEvent
		if err = sonic.Unmarshal(ev.Data, &payload); err == nil && c.opts.Status != nil {
			c.opts.Status.UpdateStatus(payload.EventCode, payload.Extra, payload.PageCode)
		}
	case EventNotify:
		var payload types.NotifyEvent
		if err = sonic.Unmarshal(ev.Data, &payload); err == nil && c.opts.Notifier != nil {
			c.opts.Notifier.Notify(payload)
		}
	case EventSysstat:
		var payload types.SysstatEvent
		if err = sonic.Unmarshal(ev.Data, &payload); err == nil && c.opts.CPU != nil {
			c.opts.CPU.UpdateCPUUsage(payload)
		}
	default:
		log.Debug("ignoring unknown event", logging.Event(ev.Name))
		return
	}

	if err != nil {
		c.opts.Metrics.RecordStreamDrop(ev.Name)
		log.Warn("dropping malformed event", logging.Event(ev.Name), zap.Error(err))
		return
	}
	c.opts.Metrics.RecordStreamEvent(ev.Name)
}
