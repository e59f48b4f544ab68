package sources

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/target/review-harvester/internal/domain/model"
	"github.com/target/review-harvester/internal/ports"
)

// HTMLAdapter scrapes review listings with CSS selectors.
type HTMLAdapter struct {
	pager
	fields HTMLFields
}

var _ ports.SourceAdapter = (*HTMLAdapter)(nil)

// NewHTMLAdapter builds an adapter for a validated html definition.
func NewHTMLAdapter(def Definition, logger *slog.Logger) (*HTMLAdapter, error) {
	if def.Kind != KindHTML || def.HTML == nil {
		return nil, fmt.Errorf("portal %s: not an html definition", def.ID)
	}
	if logger == nil {
		logger = slog.Default()
	}
	// goquery silently matches nothing on a bad selector; compile every one up front.
	for _, expr := range fieldExprs(def.HTML.Item, def.HTML.Fields) {
		if err := checkSelector(expr); err != nil {
			return nil, fmt.Errorf("portal %s: %w", def.ID, err)
		}
	}
	return &HTMLAdapter{
		pager:  pager{def: def, logger: logger.With("portal", def.ID)},
		fields: *def.HTML,
	}, nil
}

// Extract implements ports.SourceAdapter.
func (a *HTMLAdapter) Extract(ctx context.Context, req ports.ExtractRequest, emit ports.EmitFunc) error {
	return a.run(ctx, req, emit, a.parse)
}

func (a *HTMLAdapter) parse(page *ports.Page) ([]model.RawReview, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, false, err
	}
	var items []model.RawReview
	doc.Find(a.fields.Item).Each(func(_ int, s *goquery.Selection) {
		items = append(items, a.record(s))
	})
	return items, true, nil
}

func (a *HTMLAdapter) record(s *goquery.Selection) model.RawReview {
	f := a.fields.Fields
	raw := model.RawReview{
		Date:           selectText(s, f.Date),
		Content:        selectText(s, f.Content),
		Nickname:       selectText(s, f.Nickname),
		Title:          optional(selectText(s, f.Title)),
		VisitKeyword:   optional(selectText(s, f.VisitKeyword)),
		ReviewKeyword:  optional(selectText(s, f.ReviewKeyword)),
		VisitType:      optional(selectText(s, f.VisitType)),
		Emotion:        optional(selectText(s, f.Emotion)),
		AdditionalInfo: optional(selectText(s, f.Additional)),
	}
	if f.Rating != "" {
		raw.Rating = parseRating(selectText(s, f.Rating))
	}
	if f.Revisit != "" {
		raw.Revisit = selectPresent(s, f.Revisit)
	}
	return raw
}

// selectText evaluates "selector" or "selector@attr" relative to s.
// An empty selector refers to s itself.
func selectText(s *goquery.Selection, expr string) string {
	if expr == "" {
		return ""
	}
	sel, attr := splitSelector(expr)
	target := s
	if sel != "" {
		target = s.Find(sel).First()
	}
	if attr != "" {
		return collapseSpace(target.AttrOr(attr, ""))
	}
	return collapseSpace(target.Text())
}

// selectPresent reports whether the selector matches. With @attr the attribute value decides.
func selectPresent(s *goquery.Selection, expr string) bool {
	sel, attr := splitSelector(expr)
	target := s
	if sel != "" {
		target = s.Find(sel)
	}
	if target.Length() == 0 {
		return false
	}
	if attr == "" {
		return true
	}
	return truthy(target.First().AttrOr(attr, ""))
}

func splitSelector(expr string) (string, string) {
	i := strings.LastIndex(expr, "@")
	if i < 0 {
		return strings.TrimSpace(expr), ""
	}
	return strings.TrimSpace(expr[:i]), strings.TrimSpace(expr[i+1:])
}

func checkSelector(expr string) error {
	sel, _ := splitSelector(expr)
	if sel == "" {
		return nil
	}
	if _, err := cascadia.Compile(sel); err != nil {
		return fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	return nil
}

func fieldExprs(first string, f Fields) []string {
	return []string{
		first, f.Date, f.Content, f.Rating, f.Nickname, f.Title, f.VisitKeyword,
		f.ReviewKeyword, f.VisitType, f.Emotion, f.Revisit, f.Additional,
	}
}
