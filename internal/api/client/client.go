package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/kofuk/premises-sub000/internal/i18n"
	"github.com/kofuk/premises-sub000/internal/infrastructure/config"
	"github.com/kofuk/premises-sub000/internal/infrastructure/logging"
	"github.com/kofuk/premises-sub000/internal/infrastructure/monitoring"
	"github.com/kofuk/premises-sub000/internal/infrastructure/resilience"
	"github.com/kofuk/premises-sub000/internal/shared/id"
	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// RequestIDHeader carries a per-call id for correlating client and server
// logs.
const RequestIDHeader = "X-Request-ID"

// Client talks to the control panel REST API. It is safe for concurrent
// use.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	catalog *i18n.Catalog
	log     *logging.Logger
	metrics *monitoring.Metrics
	baseURL string

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.log = logging.OrNop(l).Named("api") }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithCatalog sets the catalog used to localize error codes.
func WithCatalog(cat *i18n.Catalog) Option {
	return func(c *Client) { c.catalog = cat }
}

// WithBreaker replaces the circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

type idempotentKey struct{}

// New builds a client for the control panel at cfg.API.BaseURL.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		log:     logging.Nop(),
		baseURL: strings.TrimRight(cfg.API.BaseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.catalog == nil {
		if c.catalog, err = i18n.New(cfg.Locale); err != nil {
			return nil, err
		}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retry.Max
	retryClient.RetryWaitMin = cfg.Retry.MinWait
	retryClient.RetryWaitMax = cfg.Retry.MaxWait
	retryClient.Logger = leveledLogger{c.log.Sugar()}
	retryClient.CheckRetry = checkRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c.resty = resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(cfg.API.Timeout).
		SetHeader("User-Agent", cfg.API.UserAgent).
		SetHeader("Accept", "application/json").
		SetCookieJar(jar).
		SetTransport(gzhttp.Transport(&retryablehttp.RoundTripper{Client: retryClient})).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	c.limiter = rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	}

	if c.breaker == nil {
		failures := cfg.Breaker.ConsecutiveFailures
		c.breaker = resilience.New("control-panel", resilience.Settings{
			MaxRequests: 1,
			Timeout:     cfg.Breaker.OpenTimeout,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsFailure: countsAgainstBreaker,
			OnStateChange: func(name string, from, to resilience.State) {
				c.metrics.SetBreakerState(int(to))
				c.log.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			},
		})
	}

	return c, nil
}

// BaseURL returns the control panel root URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying HTTP client, sharing the cookie jar and
// transport. The stream client uses it for the long-lived event request.
func (c *Client) HTTPClient() *http.Client {
	return c.resty.GetClient()
}

// Catalog returns the catalog used for error messages.
func (c *Client) Catalog() *i18n.Catalog {
	return c.catalog
}

// SetToken sets the bearer token sent with /api/v1 calls. An empty token
// clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Cookies returns the cookies the jar holds for the control panel.
func (c *Client) Cookies() []*http.Cookie {
	u, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return nil
	}
	return c.HTTPClient().Jar.Cookies(u)
}

// RestoreCookies installs cookies saved from an earlier Cookies call.
func (c *Client) RestoreCookies(cookies []*http.Cookie) error {
	u, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	for _, ck := range cookies {
		if ck.Path == "" {
			ck.Path = "/"
		}
	}
	c.HTTPClient().Jar.SetCookies(u, cookies)
	return nil
}

// BreakerState exposes the circuit breaker state for diagnostics.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

type call struct {
	endpoint string
	method   string
	path     string
	body     any
	form     map[string]string
	out      any
}

func (c *Client) do(ctx context.Context, cl call) error {
	timer := monitoring.NewTimer(c.metrics, cl.endpoint)
	reqID := id.NewRequestID()

	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit: %w", cl.endpoint, err)
		}

		if cl.method == http.MethodGet {
			ctx = context.WithValue(ctx, idempotentKey{}, true)
		}
		req := c.resty.R().
			SetContext(ctx).
			SetHeader(RequestIDHeader, reqID.String())
		if token := c.Token(); token != "" {
			req.SetAuthToken(token)
		}
		switch {
		case cl.form != nil:
			req.SetFormData(cl.form)
		case cl.body != nil:
			req.SetHeader("Content-Type", "application/json").SetBody(cl.body)
		}

		resp, err := req.Execute(cl.method, cl.path)
		if err != nil {
			return &TransportError{Endpoint: cl.endpoint, Err: err}
		}
		return c.decode(cl.endpoint, resp, cl.out)
	})

	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		err = fmt.Errorf("%s: control panel unavailable: %w", cl.endpoint, err)
	}

	timer.Stop(outcome(err))
	if err != nil {
		c.log.Debug("api call failed",
			logging.Endpoint(cl.endpoint),
			logging.RequestID(reqID.String()),
			zap.Error(err))
	}
	return err
}

func (c *Client) decode(endpoint string, resp *resty.Response, out any) error {
	body := resp.Body()
	if len(bytes.TrimSpace(body)) == 0 && !resp.IsError() {
		return nil
	}

	var env types.RawResponse
	if err := sonic.Unmarshal(body, &env); err != nil {
		if resp.IsError() {
			return &TransportError{Endpoint: endpoint, Status: resp.StatusCode(), Err: errors.New(resp.Status())}
		}
		return &ProtocolError{Endpoint: endpoint, Err: err}
	}

	if !env.Success {
		if env.ErrorCode == 0 && resp.IsError() {
			return &TransportError{Endpoint: endpoint, Status: resp.StatusCode(), Err: errors.New(resp.Status())}
		}
		return &APIError{Endpoint: endpoint, Code: env.ErrorCode, Message: c.catalog.Error(env.ErrorCode)}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := sonic.Unmarshal(env.Data, out); err != nil {
		return &ProtocolError{Endpoint: endpoint, Err: err}
	}
	return nil
}

func outcome(err error) string {
	var (
		apiErr   *APIError
		protoErr *ProtocolError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.As(err, &protoErr):
		return "protocol_error"
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return "breaker_open"
	default:
		return "transport_error"
	}
}

// checkRetry retries only requests marked idempotent; commands and writes
// are sent once.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ok, _ := ctx.Value(idempotentKey{}).(bool); !ok {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
