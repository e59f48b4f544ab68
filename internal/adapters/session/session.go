// Package session implements the automation session over HTTP. Each session keeps its
// own cookie jar so portal state survives across requests until the session is recreated.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/target/review-harvester/internal/ports"
	"golang.org/x/net/publicsuffix"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 5 << 20
	maxRedirects        = 10
)

// Options configures sessions created by a Factory.
type Options struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	// ProxyURL routes every request through a proxy when set.
	ProxyURL     string
	MaxBodyBytes int64
	Logger       *slog.Logger
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Factory creates HTTP sessions. It implements ports.SessionFactory.
type Factory struct {
	opts    Options
	created atomic.Int64
}

var _ ports.SessionFactory = (*Factory)(nil)

// NewFactory constructs a Factory.
func NewFactory(opts Options) *Factory {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Factory{opts: opts}
}

// NewSession implements ports.SessionFactory.
func (f *Factory) NewSession(ctx context.Context) (ports.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	client := resty.New()
	if f.opts.Transport != nil {
		client.SetTransport(f.opts.Transport)
	}
	client.SetCookieJar(jar)
	client.SetTimeout(f.opts.Timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))
	if f.opts.UserAgent != "" {
		client.SetHeader("User-Agent", f.opts.UserAgent)
	}
	if f.opts.AcceptLanguage != "" {
		client.SetHeader("Accept-Language", f.opts.AcceptLanguage)
	}
	if f.opts.ProxyURL != "" {
		client.SetProxy(f.opts.ProxyURL)
	}

	id := f.created.Add(1)
	f.opts.Logger.Debug("automation session created", "session", id)
	return &Session{id: id, client: client, maxBody: f.opts.MaxBodyBytes}, nil
}

// Session is one HTTP automation session. Fetch may be called concurrently.
type Session struct {
	id      int64
	client  *resty.Client
	maxBody int64
	closed  atomic.Bool
}

var _ ports.Session = (*Session)(nil)

// ID identifies the session in logs.
func (s *Session) ID() int64 { return s.id }

// Fetch performs one request. Transport failures that leave the session unusable are
// reported as ports.ErrSessionLost; HTTP error statuses are returned as pages.
func (s *Session) Fetch(ctx context.Context, req ports.FetchRequest) (*ports.Page, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: session %d closed", ports.ErrSessionLost, s.id)
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	r := s.client.R().SetContext(ctx)
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	// The body is read here through a limit instead of being buffered whole by resty.
	r.SetDoNotParseResponse(true)
	resp, err := r.Execute(method, req.URL)
	if err != nil {
		if resp != nil && resp.RawBody() != nil {
			_ = resp.RawBody().Close()
		}
		return nil, classifyTransportError(ctx, method, req.URL, err)
	}
	body, err := s.readBody(resp)
	if err != nil {
		var tooLarge *bodyTooLargeError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
		}
		return nil, classifyTransportError(ctx, method, req.URL, err)
	}

	finalURL := req.URL
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}
	return &ports.Page{
		URL:         finalURL,
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        body,
	}, nil
}

type bodyTooLargeError struct {
	limit int64
}

func (e *bodyTooLargeError) Error() string {
	return fmt.Sprintf("response body exceeds limit of %d bytes", e.limit)
}

// readBody reads at most maxBody bytes and closes the raw body. A declared Content-Length over
// the limit is rejected before reading.
func (s *Session) readBody(resp *resty.Response) ([]byte, error) {
	raw := resp.RawBody()
	if raw == nil {
		return nil, nil
	}
	defer raw.Close()
	if resp.RawResponse != nil && resp.RawResponse.ContentLength > s.maxBody {
		return nil, &bodyTooLargeError{limit: s.maxBody}
	}
	body, err := io.ReadAll(io.LimitReader(raw, s.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > s.maxBody {
		return nil, &bodyTooLargeError{limit: s.maxBody}
	}
	return body, nil
}

// Close drops pooled connections. Further fetches fail with ports.ErrSessionLost.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.client.GetClient().CloseIdleConnections()
	return nil
}

func classifyTransportError(ctx context.Context, method, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s: %w", method, url, ctxErr)
	}
	if isConnectionLost(err) {
		return fmt.Errorf("%w: %s %s: %v", ports.ErrSessionLost, method, url, err)
	}
	return fmt.Errorf("%s %s: %w", method, url, err)
}

// isConnectionLost matches a peer dropping the connection mid-exchange.
func isConnectionLost(err error) bool {
	switch {
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	default:
		return false
	}
}
