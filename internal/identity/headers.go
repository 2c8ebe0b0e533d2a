package identity

import "net/http"

// HeaderProvider supplies the browser header set used for one session.
// The fetcher asks once at construction and reuses the same set for every
// request, so the session looks like a single stable browser.
type HeaderProvider interface {
	Headers() http.Header
}

// StaticHeaders is a HeaderProvider backed by a fixed header set, typically
// produced by an external randomized-header generator at startup.
type StaticHeaders struct {
	header http.Header
}

// NewStaticHeaders copies h into a StaticHeaders provider. Missing
// essentials are filled in so a partial generator output still produces a
// plausible browser session.
func NewStaticHeaders(h http.Header) *StaticHeaders {
	header := make(http.Header, len(h))
	for k, vs := range h {
		for _, v := range vs {
			header.Add(k, v)
		}
	}

	setDefault := func(key, value string) {
		if header.Get(key) == "" {
			header.Set(key, value)
		}
	}
	setDefault("User-Agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	setDefault("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	setDefault("Accept-Language", "en-US,en;q=0.9")
	setDefault("Accept-Encoding", "gzip, deflate, br")
	setDefault("Connection", "keep-alive")
	setDefault("Upgrade-Insecure-Requests", "1")
	setDefault("DNT", "1")

	return &StaticHeaders{header: header}
}

// DefaultHeaders returns a provider with a realistic Chrome-on-Windows
// header set and a same-site referer.
func DefaultHeaders(referer string) *StaticHeaders {
	h := make(http.Header)
	if referer != "" {
		h.Set("Referer", referer)
	}
	return NewStaticHeaders(h)
}

func (s *StaticHeaders) Headers() http.Header {
	return s.header
}
