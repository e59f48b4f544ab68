// Package sourcetest provides scripted source adapters and automation sessions for tests.
package sourcetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/target/review-harvester/internal/domain/model"
	"github.com/target/review-harvester/internal/ports"
)

// Call records one Extract invocation.
type Call struct {
	Company   string
	SourceURL string
	SessionID int
}

// Adapter is a scripted ports.SourceAdapter.
//
// Every call emits Records in order. When Errors[i] is non-nil, call i emits the first
// EmitBeforeFail records and then returns Errors[i].
type Adapter struct {
	PortalID       model.Portal
	NeedsURL       bool
	Records        []model.RawReview
	Errors         []error
	EmitBeforeFail int
	// OnCall runs at the start of every call, before anything is emitted.
	OnCall func(ctx context.Context, call int, req ports.ExtractRequest) error

	mu       sync.Mutex
	calls    []Call
	outcomes []model.SaveOutcome
}

var _ ports.SourceAdapter = (*Adapter)(nil)

// Portal implements ports.SourceAdapter.
func (a *Adapter) Portal() model.Portal { return a.PortalID }

// RequiresURL implements ports.SourceAdapter.
func (a *Adapter) RequiresURL() bool { return a.NeedsURL }

// Extract implements ports.SourceAdapter.
func (a *Adapter) Extract(ctx context.Context, req ports.ExtractRequest, emit ports.EmitFunc) error {
	a.mu.Lock()
	call := len(a.calls)
	a.calls = append(a.calls, Call{
		Company:   req.Company.Name,
		SourceURL: req.SourceURL,
		SessionID: SessionID(req.Session),
	})
	a.mu.Unlock()

	if a.OnCall != nil {
		if err := a.OnCall(ctx, call, req); err != nil {
			return err
		}
	}

	var failure error
	records := a.Records
	if call < len(a.Errors) && a.Errors[call] != nil {
		failure = a.Errors[call]
		records = records[:min(a.EmitBeforeFail, len(records))]
	}

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := emit(ctx, r)
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.outcomes = append(a.outcomes, outcome)
		a.mu.Unlock()
	}
	return failure
}

// Calls returns a copy of the recorded calls.
func (a *Adapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call(nil), a.calls...)
}

// Outcomes returns the gateway outcomes seen by emit, in order.
func (a *Adapter) Outcomes() []model.SaveOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.SaveOutcome(nil), a.outcomes...)
}

// Session is a fake ports.Session serving canned pages by URL.
type Session struct {
	ID     int
	Pages  map[string]*ports.Page
	closed atomic.Bool
}

var _ ports.Session = (*Session)(nil)

// Fetch implements ports.Session.
func (s *Session) Fetch(ctx context.Context, req ports.FetchRequest) (*ports.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: session %d closed", ports.ErrSessionLost, s.ID)
	}
	if p, ok := s.Pages[req.URL]; ok {
		return p, nil
	}
	return &ports.Page{URL: req.URL, StatusCode: 404}, nil
}

// Close implements ports.Session.
func (s *Session) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool { return s.closed.Load() }

// SessionID returns the fake session id, or -1 for other sessions.
func SessionID(sess ports.Session) int {
	if s, ok := sess.(*Session); ok && s != nil {
		return s.ID
	}
	return -1
}

// ErrFactory is returned by Factory when a creation is scripted to fail.
var ErrFactory = errors.New("sourcetest: session creation failed")

// Factory is a ports.SessionFactory creating numbered fake sessions.
type Factory struct {
	// Fail lists 0-based creation indexes that return ErrFactory.
	Fail  map[int]bool
	Pages map[string]*ports.Page

	mu       sync.Mutex
	attempts int
	sessions []*Session
}

var _ ports.SessionFactory = (*Factory)(nil)

// NewSession implements ports.SessionFactory.
func (f *Factory) NewSession(ctx context.Context) (ports.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.attempts
	f.attempts++
	if f.Fail[n] {
		return nil, ErrFactory
	}
	s := &Session{ID: n, Pages: f.Pages}
	f.sessions = append(f.sessions, s)
	return s, nil
}

// Attempts reports how many sessions were requested.
func (f *Factory) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// Sessions returns the sessions created so far.
func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}

// Review builds a minimal valid raw review dated day (YYYY-MM-DD).
func Review(nickname, day string) model.RawReview {
	rating := 4.0
	return model.RawReview{
		Date:     day,
		Content:  "review by " + nickname,
		Rating:   &rating,
		Nickname: nickname,
	}
}
