// Package fetcher implements the bot-aware HTTP fetch layer: paced GETs
// over one persistent session, transport-level retry with backoff, body
// bot-checks, and a single identity-rotation escalation when the target
// starts blocking.
package fetcher

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/net/proxy"

	"shopcrawler/internal/identity"
	"shopcrawler/internal/ratelimit"
)

// Config controls one Fetcher instance. Zero values fall back to the
// documented defaults.
type Config struct {
	// PaceMin/PaceMax bound the random courtesy delay before each request.
	PaceMin time.Duration
	PaceMax time.Duration

	// CooldownMin/CooldownMax bound the extended sleep after a suspected
	// block, before the single escalation retry.
	CooldownMin time.Duration
	CooldownMax time.Duration

	// MaxRetries is the transport-level retry budget per request cycle.
	MaxRetries int
	// BackoffBase seeds the exponential backoff between transport retries.
	BackoffBase time.Duration
	// RetryStatuses are retried at the transport level; 429 and 503 also
	// count as rate-limiting for escalation purposes.
	RetryStatuses []int

	Timeout      time.Duration
	MaxBodyBytes int64

	// RotateOnBlock enables the identity-rotation escalation. Disabled,
	// a bot page or persistent 429/503 is surfaced immediately.
	RotateOnBlock bool
	BotPhrases    []string

	// HTTPClient overrides the built session client; tests install a
	// mocked transport here.
	HTTPClient *http.Client
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PaceMin == 0 && out.PaceMax == 0 {
		out.PaceMin = 2500 * time.Millisecond
		out.PaceMax = 5 * time.Second
	}
	if out.CooldownMin == 0 && out.CooldownMax == 0 {
		out.CooldownMin = 8 * time.Second
		out.CooldownMax = 15 * time.Second
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = 2
	}
	if out.BackoffBase == 0 {
		out.BackoffBase = 1500 * time.Millisecond
	}
	if len(out.RetryStatuses) == 0 {
		out.RetryStatuses = []int{429, 500, 502, 503, 504}
	}
	if out.Timeout == 0 {
		out.Timeout = 30 * time.Second
	}
	if out.MaxBodyBytes == 0 {
		out.MaxBodyBytes = 10 << 20
	}
	return out
}

// Fetcher owns one browsing session: a pooled connection/cookie state and
// a fixed header set. All operations on one instance run strictly in
// sequence; run independent instances for parallel crawling.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	headers  http.Header
	pacer    *ratelimit.Pacer
	botCheck *BotCheck
	rotator  identity.Rotator
	metrics  *Metrics
	logger   *slog.Logger
}

// New builds a Fetcher. rotator may be nil, in which case escalation skips
// straight to the cooldown retry. A rotator that also provides a SOCKS
// dialer (like identity.TorRotator) routes the whole session through it.
func New(cfg Config, headers identity.HeaderProvider, rotator identity.Rotator, metrics *Metrics, logger *slog.Logger) (*Fetcher, error) {
	cfg = cfg.withDefaults()

	botCheck, err := NewBotCheck(cfg.BotPhrases)
	if err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		var dialer proxy.ContextDialer
		if td, ok := rotator.(interface {
			Dialer() (proxy.ContextDialer, error)
		}); ok && rotator != nil {
			dialer, err = td.Dialer()
			if err != nil {
				return nil, err
			}
		}
		client, err = newClient(cfg.Timeout, dialer)
		if err != nil {
			return nil, err
		}
	}

	h := make(http.Header)
	if headers != nil {
		for k, vs := range headers.Headers() {
			for _, v := range vs {
				h.Add(k, v)
			}
		}
	}
	// Let the transport negotiate compression itself so bodies arrive
	// transparently decoded.
	h.Del("Accept-Encoding")

	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{
		cfg:      cfg,
		client:   client,
		headers:  h,
		pacer:    ratelimit.NewPacer(cfg.PaceMin, cfg.PaceMax),
		botCheck: botCheck,
		rotator:  rotator,
		metrics:  metrics,
		logger:   logger.With("component", "fetcher"),
	}, nil
}

// Fetch runs the full per-call state machine: pace, request with transport
// retries, bot-check, at most one rotation-and-cooldown escalation, then
// resolve to either the document body or a classified error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.pacer.Wait(ctx); err != nil {
		return "", err
	}

	// The histogram covers the whole resolve path, escalation included;
	// pacing is excluded since it is idle courtesy time.
	start := time.Now()
	defer func() { f.metrics.ObserveDuration(time.Since(start)) }()

	body, status, err := f.requestWithRetry(ctx, url)
	if err != nil {
		f.metrics.IncError("transport")
		return "", &TransportError{URL: url, Err: err}
	}

	if f.isRateLimited(status) || f.botCheck.Match(body) {
		body, status, err = f.escalate(ctx, url)
		if err != nil {
			f.metrics.IncError("transport")
			return "", &TransportError{URL: url, Err: err}
		}
	}

	switch {
	case f.isRateLimited(status):
		f.metrics.IncError("rate_limited")
		return "", &RateLimitError{URL: url, StatusCode: status}
	case status >= http.StatusBadRequest:
		f.metrics.IncError("transport")
		return "", &TransportError{URL: url, StatusCode: status}
	case f.botCheck.Match(body):
		f.metrics.IncError("bot_detected")
		return "", &BotDetectionError{URL: url}
	}

	f.metrics.IncRequest("success")
	return body, nil
}

// escalate rotates identity (when enabled), waits out the circuit settle
// delay plus an extended cooldown, and performs exactly one more request
// cycle. The second result gets no further escalation.
func (f *Fetcher) escalate(ctx context.Context, url string) (string, int, error) {
	if f.cfg.RotateOnBlock && f.rotator != nil {
		f.logger.Warn("suspected block, rotating identity", "url", url)
		if err := f.rotator.Rotate(ctx); err != nil {
			f.logger.Error("identity rotation failed", "error", err)
		} else {
			f.metrics.IncRotations()
			if err := sleep(ctx, f.rotator.SettleDelay()); err != nil {
				return "", 0, err
			}
		}
	}

	if err := sleep(ctx, f.cooldown()); err != nil {
		return "", 0, err
	}
	return f.requestWithRetry(ctx, url)
}

// requestWithRetry is the transport-level retry loop: connection failures
// and statuses in the retryable set are retried with exponential backoff
// until the budget runs out; the last response is returned either way.
func (f *Fetcher) requestWithRetry(ctx context.Context, url string) (string, int, error) {
	var (
		body    string
		status  int
		lastErr error
	)
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			f.metrics.IncRetries()
			if err := sleep(ctx, f.backoff(attempt)); err != nil {
				return "", 0, err
			}
		}

		body, status, lastErr = f.get(ctx, url)
		if lastErr != nil {
			f.metrics.IncRequest("error")
			f.logger.Debug("request failed", "url", url, "attempt", attempt, "error", lastErr)
			continue
		}
		if !f.isRetryableStatus(status) {
			return body, status, nil
		}
		f.metrics.IncRequest("retryable_status")
		f.logger.Debug("retryable status", "url", url, "attempt", attempt, "status", status)
	}
	if lastErr != nil {
		return "", 0, lastErr
	}
	return body, status, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	for k, vs := range f.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return "", 0, err
	}
	return string(data), resp.StatusCode, nil
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	return f.cfg.BackoffBase * time.Duration(1<<(attempt-1))
}

func (f *Fetcher) cooldown() time.Duration {
	if f.cfg.CooldownMax <= f.cfg.CooldownMin {
		return f.cfg.CooldownMin
	}
	delta := f.cfg.CooldownMax - f.cfg.CooldownMin
	return f.cfg.CooldownMin + time.Duration(rand.Int63n(int64(delta)))
}

func (f *Fetcher) isRetryableStatus(status int) bool {
	for _, s := range f.cfg.RetryStatuses {
		if status == s {
			return true
		}
	}
	return false
}

func (f *Fetcher) isRateLimited(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
