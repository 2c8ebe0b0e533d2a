package fetcher

import "fmt"

// TransportError is a connection failure or an error status that survived
// the transport retry budget. StatusCode is zero when the failure never
// produced a response.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: HTTP %d fetching %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("transport: fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BotDetectionError means the body still matched bot-interdiction patterns
// after the one allowed escalation cycle. Slowing down or rotating
// identity is the only recourse.
type BotDetectionError struct {
	URL string
}

func (e *BotDetectionError) Error() string {
	return fmt.Sprintf("bot detection page returned for %s", e.URL)
}

// RateLimitError means the target kept answering with a rate-limited
// status after escalation. Callers treat it like BotDetectionError: the
// URL is unreachable through this identity right now.
type RateLimitError struct {
	URL        string
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d) fetching %s", e.StatusCode, e.URL)
}
