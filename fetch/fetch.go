// Package fetch acquires document payloads: direct network retrieval with an
// optional proxy fallback, bundled resources, and payload validation up to an
// open document source.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"

	"github.com/wudi/flipbook/observability"
	"github.com/wudi/flipbook/source"
)

// Magic is the fixed 4-byte signature every acceptable payload starts with.
const Magic = "%PDF"

// Doer issues HTTP requests. *http.Client satisfies it; tests stub it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config controls a Client.
type Config struct {
	// HTTP is the transport used for direct and proxy retrieval.
	// Defaults to http.DefaultClient.
	HTTP Doer

	// ProxyEndpoint, when non-empty, is prepended to the percent-encoded
	// original URL after a failed direct fetch.
	ProxyEndpoint string

	// Opener turns validated payloads into document sources. Required.
	Opener source.Opener

	Logger observability.Logger
	Tracer observability.Tracer
}

// Client is the acquisition service.
type Client struct {
	http   Doer
	proxy  string
	opener source.Opener
	logger observability.Logger
	tracer observability.Tracer
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Opener == nil {
		return nil, errors.New("opener required")
	}
	if cfg.HTTP == nil {
		cfg.HTTP = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	return &Client{
		http:   cfg.HTTP,
		proxy:  cfg.ProxyEndpoint,
		opener: cfg.Opener,
		logger: cfg.Logger,
		tracer: cfg.Tracer,
	}, nil
}

// FetchBytes retrieves the document at location. A failed direct attempt is
// retried once through the proxy endpoint when one is configured; both
// failures are reported together.
func (c *Client) FetchBytes(ctx context.Context, location string) ([]byte, error) {
	ctx, span := c.tracer.StartSpan(ctx, "fetch.bytes")
	defer span.Finish()
	span.SetTag("url", location)

	body, directErr := c.get(ctx, location)
	if directErr == nil {
		c.logger.Debug("direct fetch succeeded",
			observability.String("url", location),
			observability.Int("bytes", len(body)))
		return body, nil
	}

	if c.proxy == "" {
		err := fmt.Errorf("fetch %s: %w", location, errors.Join(ErrNoFallback, directErr))
		span.SetError(err)
		return nil, err
	}

	proxyURL := c.proxy + url.QueryEscape(location)
	c.logger.Info("direct fetch failed, trying proxy",
		observability.String("url", location),
		observability.String("proxy", proxyURL),
		observability.Error("err", directErr))

	body, proxyErr := c.get(ctx, proxyURL)
	if proxyErr == nil {
		return body, nil
	}

	err := fmt.Errorf("fetch %s: %w", location, &ProxyError{Direct: directErr, Proxy: proxyErr})
	span.SetError(err)
	return nil, err
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, *RetrievalError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &RetrievalError{URL: rawURL, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RetrievalError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RetrievalError{URL: rawURL, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RetrievalError{URL: rawURL, Status: resp.StatusCode}
	}
	if len(body) == 0 {
		return nil, &RetrievalError{URL: rawURL, Status: resp.StatusCode}
	}
	return body, nil
}

// LoadBundled reads a document payload from a bundled resource instead of
// the network. The same validation applies downstream.
func (c *Client) LoadBundled(ctx context.Context, fsys fs.FS, path string) ([]byte, error) {
	_, span := c.tracer.StartSpan(ctx, "fetch.bundled")
	defer span.Finish()
	span.SetTag("path", path)

	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		err = fmt.Errorf("load bundled resource %s: %w", path, err)
		span.SetError(err)
		return nil, err
	}
	return data, nil
}

// OpenDocument validates a payload and opens it through the configured
// opener. It rejects empty payloads, payloads without the document magic,
// and documents reporting zero pages.
func (c *Client) OpenDocument(ctx context.Context, data []byte) (source.Source, int, error) {
	ctx, span := c.tracer.StartSpan(ctx, "fetch.open")
	defer span.Finish()

	if len(data) == 0 {
		span.SetError(ErrEmptyPayload)
		return nil, 0, fmt.Errorf("open document: %w", ErrEmptyPayload)
	}
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		end := len(Magic)
		if end > len(data) {
			end = len(data)
		}
		err := fmt.Errorf("open document: %w", &FormatError{Prefix: data[:end]})
		span.SetError(err)
		return nil, 0, err
	}

	src, err := c.opener.Open(ctx, data)
	if err != nil {
		err = fmt.Errorf("open document: %w", err)
		span.SetError(err)
		return nil, 0, err
	}
	pages := src.PageCount()
	if pages == 0 {
		src.Close()
		span.SetError(ErrEmptyDocument)
		return nil, 0, fmt.Errorf("open document: %w", ErrEmptyDocument)
	}

	c.logger.Info("document opened", observability.Int("pages", pages))
	return src, pages, nil
}
