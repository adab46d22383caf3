package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFallback reports a failed direct fetch with no proxy configured.
	ErrNoFallback = errors.New("no fallback available")

	// ErrEmptyPayload reports an empty document payload.
	ErrEmptyPayload = errors.New("empty document payload")

	// ErrEmptyDocument reports a document that opened with zero pages.
	ErrEmptyDocument = errors.New("document has no pages")
)

// RetrievalError describes a single failed retrieval attempt.
type RetrievalError struct {
	URL    string
	Status int
	Err    error
}

func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("retrieve %s: %v", e.URL, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("retrieve %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("retrieve %s: empty response body", e.URL)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// ProxyError reports that both the direct and the proxy retrieval failed.
// The direct failure is always carried alongside the proxy one.
type ProxyError struct {
	Direct *RetrievalError
	Proxy  *RetrievalError
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("direct fetch failed (%v); proxy fetch failed (%v)", e.Direct, e.Proxy)
}

func (e *ProxyError) Unwrap() []error { return []error{e.Direct, e.Proxy} }

// FormatError reports a payload that does not begin with the document magic.
type FormatError struct {
	Prefix []byte
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid document format: leading bytes %q, want %q", e.Prefix, Magic)
}
