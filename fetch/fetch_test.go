package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"testing/fstest"

	"github.com/wudi/flipbook/source"
	"github.com/wudi/flipbook/source/placeholder"
)

// stubDoer maps exact URLs to canned responses.
type stubDoer struct {
	responses map[string]stubResponse
}

type stubResponse struct {
	status int
	body   []byte
	err    error
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	r, ok := d.responses[req.URL.String()]
	if !ok {
		return nil, errors.New("unexpected URL: " + req.URL.String())
	}
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(bytes.NewReader(r.body)),
	}, nil
}

func newClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	if cfg.Opener == nil {
		cfg.Opener = placeholder.Opener()
	}
	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestFetchBytesDirect(t *testing.T) {
	want := []byte("direct payload")
	c := newClient(t, Config{
		HTTP: &stubDoer{responses: map[string]stubResponse{
			"http://docs.example/book.pdf": {status: 200, body: want},
		}},
	})
	got, err := c.FetchBytes(context.Background(), "http://docs.example/book.pdf")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("body = %q, want %q", got, want)
	}
}

func TestFetchBytesProxyFallback(t *testing.T) {
	const location = "http://docs.example/book.pdf"
	const proxy = "http://proxy.example/?u="
	want := []byte("proxy payload")
	c := newClient(t, Config{
		ProxyEndpoint: proxy,
		HTTP: &stubDoer{responses: map[string]stubResponse{
			location:                         {status: 503},
			proxy + url.QueryEscape(location): {status: 200, body: want},
		}},
	})
	got, err := c.FetchBytes(context.Background(), location)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("body = %q, want proxy body %q", got, want)
	}
}

func TestFetchBytesBothFail(t *testing.T) {
	const location = "http://docs.example/book.pdf"
	const proxy = "http://proxy.example/?u="
	c := newClient(t, Config{
		ProxyEndpoint: proxy,
		HTTP: &stubDoer{responses: map[string]stubResponse{
			location:                         {err: errors.New("connection refused")},
			proxy + url.QueryEscape(location): {status: 502},
		}},
	})
	_, err := c.FetchBytes(context.Background(), location)
	if err == nil {
		t.Fatal("expected composite error")
	}
	var perr *ProxyError
	if !errors.As(err, &perr) {
		t.Fatalf("error %v is not a *ProxyError", err)
	}
	if perr.Direct == nil || perr.Proxy == nil {
		t.Fatalf("composite error missing a cause: %+v", perr)
	}
	if perr.Proxy.Status != 502 {
		t.Fatalf("proxy status = %d, want 502", perr.Proxy.Status)
	}
}

func TestFetchBytesNoFallback(t *testing.T) {
	c := newClient(t, Config{
		HTTP: &stubDoer{responses: map[string]stubResponse{
			"http://docs.example/book.pdf": {status: 404},
		}},
	})
	_, err := c.FetchBytes(context.Background(), "http://docs.example/book.pdf")
	if !errors.Is(err, ErrNoFallback) {
		t.Fatalf("error = %v, want ErrNoFallback", err)
	}
	var rerr *RetrievalError
	if !errors.As(err, &rerr) {
		t.Fatalf("error %v does not carry the direct failure", err)
	}
}

func TestFetchBytesEmptyBodyIsFailure(t *testing.T) {
	c := newClient(t, Config{
		HTTP: &stubDoer{responses: map[string]stubResponse{
			"http://docs.example/book.pdf": {status: 200, body: nil},
		}},
	})
	if _, err := c.FetchBytes(context.Background(), "http://docs.example/book.pdf"); err == nil {
		t.Fatal("expected empty 200 body to fail")
	}
}

func TestLoadBundled(t *testing.T) {
	payload := placeholder.Payload(4, 100, 140)
	fsys := fstest.MapFS{"books/sample.pdf": {Data: payload}}
	c := newClient(t, Config{HTTP: &stubDoer{}})

	data, err := c.LoadBundled(context.Background(), fsys, "books/sample.pdf")
	if err != nil {
		t.Fatalf("load bundled: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("bundled data mismatch")
	}
	if _, err := c.LoadBundled(context.Background(), fsys, "books/missing.pdf"); err == nil {
		t.Fatal("expected error for missing resource")
	}
}

func TestOpenDocument(t *testing.T) {
	c := newClient(t, Config{HTTP: &stubDoer{}})
	src, pages, err := c.OpenDocument(context.Background(), placeholder.Payload(7, 100, 140))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()
	if pages != 7 {
		t.Fatalf("pages = %d, want 7", pages)
	}
}

func TestOpenDocumentRejectsEmptyPayload(t *testing.T) {
	c := newClient(t, Config{HTTP: &stubDoer{}})
	if _, _, err := c.OpenDocument(context.Background(), nil); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("error = %v, want ErrEmptyPayload", err)
	}
}

func TestOpenDocumentRejectsBadMagic(t *testing.T) {
	c := newClient(t, Config{HTTP: &stubDoer{}})
	for _, data := range [][]byte{
		[]byte("PK\x03\x04zipfile"),
		[]byte("%PD"),
		[]byte("<html>not a doc</html>"),
	} {
		_, _, err := c.OpenDocument(context.Background(), data)
		var ferr *FormatError
		if !errors.As(err, &ferr) {
			t.Fatalf("payload %q: error = %v, want *FormatError", data, err)
		}
	}
}

func TestOpenDocumentRejectsZeroPages(t *testing.T) {
	closed := false
	opener := source.OpenerFunc(func(ctx context.Context, data []byte) (source.Source, error) {
		s, err := placeholder.Opener().Open(ctx, data)
		if err != nil {
			return nil, err
		}
		return &closeSpy{Source: s, closed: &closed}, nil
	})
	c := newClient(t, Config{HTTP: &stubDoer{}, Opener: opener})

	_, _, err := c.OpenDocument(context.Background(), placeholder.Payload(0, 100, 140))
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("error = %v, want ErrEmptyDocument", err)
	}
	if !closed {
		t.Fatal("zero-page document was not released")
	}
}

type closeSpy struct {
	source.Source
	closed *bool
}

func (c *closeSpy) Close() error {
	*c.closed = true
	return c.Source.Close()
}
