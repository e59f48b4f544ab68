package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/target/review-harvester/internal/domain/model"
	"github.com/target/review-harvester/internal/ports"
)

// StatusError reports a non-2xx portal response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("portal returned status %d for %s", e.StatusCode, e.URL)
}

// pageParser turns one fetched page into candidate records. more=false ends pagination.
type pageParser func(page *ports.Page) (items []model.RawReview, more bool, err error)

// pager walks a portal's pages newest first and streams every record through emit.
type pager struct {
	def    Definition
	logger *slog.Logger
}

func (p *pager) Portal() model.Portal { return p.def.ID }

func (p *pager) RequiresURL() bool { return p.def.RequiresURL }

func (p *pager) run(ctx context.Context, req ports.ExtractRequest, emit ports.EmitFunc, parse pageParser) error {
	if req.Session == nil {
		return ports.ErrSessionLost
	}
	header := make(http.Header, len(p.def.Headers))
	for k, v := range p.def.Headers {
		header.Set(k, v)
	}

	for page := 1; page <= p.def.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := p.def.PageURL(req.Company.Name, req.SourceURL, page)
		if err != nil {
			return err
		}
		fetched, err := req.Session.Fetch(ctx, ports.FetchRequest{
			Method: p.def.Method,
			URL:    target,
			Header: header,
			Body:   p.def.PageBody(req.Company.Name, page),
		})
		if err != nil {
			return fmt.Errorf("fetch page %d: %w", page, err)
		}
		if fetched.StatusCode < 200 || fetched.StatusCode > 299 {
			return &StatusError{URL: target, StatusCode: fetched.StatusCode}
		}

		items, more, err := parse(fetched)
		if err != nil {
			return fmt.Errorf("parse page %d: %w", page, err)
		}
		p.logger.Debug("portal page parsed",
			"portal", p.def.ID,
			"company", req.Company.Name,
			"page", page,
			"items", len(items),
		)
		if len(items) == 0 {
			return nil
		}
		for _, item := range items {
			item.Date = p.normalizeDate(item.Date)
			if _, err := emit(ctx, item); err != nil {
				return err
			}
		}
		if !more {
			return nil
		}
	}
	return nil
}

// normalizeDate rewrites dates matching a configured layout to YYYY-MM-DD.
// Anything else is passed through for the normalizer to accept or reject.
func (p *pager) normalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	for _, layout := range p.def.DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return s
}

var (
	numberPattern = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// parseRating extracts the first number in s ("별점 4.5점" -> 4.5).
func parseRating(s string) *float64 {
	m := numberPattern.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &v
}

func collapseSpace(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

func optional(s string) *string {
	s = collapseSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "n", "off", "null":
		return false
	default:
		return true
	}
}
