// Package config provides 12-factor configuration for the control panel client.
//
// Values are layered: built-in defaults, then an optional TOML profile file,
// then environment variables.
//
// Configuration Sections:
//   - API: control panel base URL, request timeout, user agent
//   - Auth: credentials for non-interactive login
//   - Retry: retry policy for idempotent REST calls
//   - RateLimit: client-side request limiter
//   - Breaker: circuit breaker thresholds
//   - Stream: event stream reconnect delays and CPU buffer capacity
//   - Logging: log level and output format
//   - Metrics: optional Prometheus listener
//
// Example Usage:
//
//	cfg, err := config.LoadFile("~/.config/premises/profile.toml")
//	fmt.Printf("Using control panel at %s\n", cfg.API.BaseURL)
//
// Environment Variables:
//   - PREMISES_URL, PREMISES_TIMEOUT, PREMISES_USER_AGENT
//   - PREMISES_USER, PREMISES_PASSWORD
//   - PREMISES_RETRY_MAX, PREMISES_RETRY_MIN_WAIT, PREMISES_RETRY_MAX_WAIT
//   - PREMISES_RATE_LIMIT_RPS, PREMISES_RATE_LIMIT_BURST, PREMISES_RATE_LIMIT_ENABLED
//   - PREMISES_BREAKER_FAILURES, PREMISES_BREAKER_TIMEOUT
//   - PREMISES_STREAM_RETRY, PREMISES_STREAM_RETRY_MAX, PREMISES_CPU_BUFFER
//   - PREMISES_LOG_LEVEL, PREMISES_LOG_DEV, PREMISES_METRICS_ADDR, PREMISES_LOCALE
package config
