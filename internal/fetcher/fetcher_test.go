package fetcher

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcrawler/internal/identity"
)

const testURL = "https://www.example.com/dp/B0TEST001"

type stubRotator struct {
	calls int32
}

func (s *stubRotator) Rotate(ctx context.Context) error {
	atomic.AddInt32(&s.calls, 1)
	return nil
}

func (s *stubRotator) SettleDelay() time.Duration { return time.Nanosecond }

// testConfig shrinks every delay to nanoseconds so the full escalation
// path runs instantly under test.
func testConfig(client *http.Client) Config {
	return Config{
		PaceMin:       time.Nanosecond,
		PaceMax:       2 * time.Nanosecond,
		CooldownMin:   time.Nanosecond,
		CooldownMax:   2 * time.Nanosecond,
		BackoffBase:   time.Nanosecond,
		MaxRetries:    2,
		RotateOnBlock: true,
		HTTPClient:    client,
	}
}

func newTestFetcher(t *testing.T, cfg Config, rotator identity.Rotator) *Fetcher {
	t.Helper()
	f, err := New(cfg, identity.DefaultHeaders("https://www.example.com/"), rotator, nil, nil)
	require.NoError(t, err)
	return f
}

func TestFetchSuccess(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	var gotUA string
	httpmock.RegisterResponder("GET", testURL, func(req *http.Request) (*http.Response, error) {
		gotUA = req.Header.Get("User-Agent")
		return httpmock.NewStringResponse(200, "<html><span id=\"productTitle\">Lamp</span></html>"), nil
	})

	f := newTestFetcher(t, testConfig(client), nil)
	body, err := f.Fetch(context.Background(), testURL)
	require.NoError(t, err)
	assert.Contains(t, body, "productTitle")
	assert.NotEmpty(t, gotUA, "browser headers are applied to every request")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetchRetriesTransientStatus(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	var calls int32
	httpmock.RegisterResponder("GET", testURL, func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return httpmock.NewStringResponse(500, "internal error"), nil
		}
		return httpmock.NewStringResponse(200, "ok"), nil
	})

	f := newTestFetcher(t, testConfig(client), nil)
	body, err := f.Fetch(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestFetchHardStatusNotRetried(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", testURL,
		httpmock.NewStringResponder(404, "gone"))

	f := newTestFetcher(t, testConfig(client), nil)
	_, err := f.Fetch(context.Background(), testURL)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 404, transportErr.StatusCode)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetchPersistentRateLimit(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", testURL,
		httpmock.NewStringResponder(429, "slow down"))

	rotator := &stubRotator{}
	f := newTestFetcher(t, testConfig(client), rotator)
	_, err := f.Fetch(context.Background(), testURL)

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 429, rateErr.StatusCode)
	// One rotation attempt, then the second cycle's result is final.
	assert.Equal(t, int32(1), atomic.LoadInt32(&rotator.calls))
}

func TestFetchBotPageRecoversAfterRotation(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	var calls int32
	httpmock.RegisterResponder("GET", testURL, func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return httpmock.NewStringResponse(200, "<title>Robot Check</title>"), nil
		}
		return httpmock.NewStringResponse(200, "real page"), nil
	})

	rotator := &stubRotator{}
	f := newTestFetcher(t, testConfig(client), rotator)
	body, err := f.Fetch(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, "real page", body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&rotator.calls))
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestFetchPersistentBotPage(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", testURL,
		httpmock.NewStringResponder(200, "please solve the captcha"))

	rotator := &stubRotator{}
	f := newTestFetcher(t, testConfig(client), rotator)
	_, err := f.Fetch(context.Background(), testURL)

	var botErr *BotDetectionError
	require.ErrorAs(t, err, &botErr)
	assert.Equal(t, testURL, botErr.URL)
	assert.Equal(t, int32(1), atomic.LoadInt32(&rotator.calls))
}

func TestFetchDurationCoversEscalation(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	var calls int32
	httpmock.RegisterResponder("GET", testURL, func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return httpmock.NewStringResponse(200, "<title>Robot Check</title>"), nil
		}
		return httpmock.NewStringResponse(200, "real page"), nil
	})

	cfg := testConfig(client)
	cfg.CooldownMin = 30 * time.Millisecond
	cfg.CooldownMax = 31 * time.Millisecond

	m := NewMetrics()
	f, err := New(cfg, identity.DefaultHeaders(""), &stubRotator{}, m, nil)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), testURL)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RotationsTotal))

	mfs, err := m.Registry.Gather()
	require.NoError(t, err)
	var hist *dto.MetricFamily
	for _, mf := range mfs {
		if mf.GetName() == "fetcher_request_duration_seconds" {
			hist = mf
		}
	}
	require.NotNil(t, hist)
	require.Len(t, hist.Metric, 1)
	h := hist.Metric[0].GetHistogram()
	assert.Equal(t, uint64(1), h.GetSampleCount(), "one observation per fetch")
	// The cooldown before the escalation retry belongs in the latency.
	assert.GreaterOrEqual(t, h.GetSampleSum(), 0.03)
}

func TestFetchRotationDisabled(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", testURL,
		httpmock.NewStringResponder(200, "please solve the captcha"))

	cfg := testConfig(client)
	cfg.RotateOnBlock = false

	rotator := &stubRotator{}
	f := newTestFetcher(t, cfg, rotator)
	_, err := f.Fetch(context.Background(), testURL)

	var botErr *BotDetectionError
	require.ErrorAs(t, err, &botErr)
	assert.Equal(t, int32(0), atomic.LoadInt32(&rotator.calls))
}
