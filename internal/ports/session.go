package ports

import (
	"context"
	"net/http"
	"net/url"
)

// FetchRequest describes one navigation performed through an automation session.
type FetchRequest struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Page is the loaded document returned by a session.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Session is a stateful automation session (cookies, connection pool) shared by every
// extraction in a job. It is not safe for concurrent use by multiple extractions.
type Session interface {
	Fetch(ctx context.Context, req FetchRequest) (*Page, error)
	Close() error
}

// SessionFactory creates fresh sessions. A job opens one at start and recreates it after fatal errors.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context) (Session, error)

// NewSession implements SessionFactory.
func (f SessionFactoryFunc) NewSession(ctx context.Context) (Session, error) {
	return f(ctx)
}
