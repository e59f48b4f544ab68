// Package sources provides the configurable portal adapters: HTML pages scraped with CSS
// selectors and JSON APIs read with JMESPath. Portals are declared in a definitions file.
package sources

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/target/review-harvester/internal/domain/model"
)

// Portal kinds.
const (
	KindHTML = "html"
	KindJSON = "json"
)

const (
	defaultMaxPages = 5
	maxPagesCeiling = 100
)

// Definition declares one portal.
type Definition struct {
	ID   model.Portal `json:"id"`
	Kind string       `json:"kind"`
	// RequiresURL means the portal is reached through the company's configured source URL.
	RequiresURL bool `json:"requires_url"`
	// URL is a template expanded per page. Placeholders: {source_url}, {company}, {page}, {offset}.
	URL      string            `json:"url"`
	Method   string            `json:"method,omitempty"`
	Body     string            `json:"body,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	MaxPages int               `json:"max_pages,omitempty"`
	PageSize int               `json:"page_size,omitempty"`
	// DateLayouts are extra Go time layouts tried before handing the date to the normalizer.
	DateLayouts []string `json:"date_layouts,omitempty"`

	HTML *HTMLFields `json:"html,omitempty"`
	JSON *JSONFields `json:"json,omitempty"`
}

// Fields maps review attributes to extraction expressions. For HTML they are CSS selectors
// relative to the item, optionally suffixed with @attr to read an attribute; for JSON they are
// JMESPath expressions relative to the item.
type Fields struct {
	Date          string `json:"date"`
	Content       string `json:"content"`
	Rating        string `json:"rating,omitempty"`
	Nickname      string `json:"nickname"`
	Title         string `json:"title,omitempty"`
	VisitKeyword  string `json:"visit_keyword,omitempty"`
	ReviewKeyword string `json:"review_keyword,omitempty"`
	VisitType     string `json:"visit_type,omitempty"`
	Emotion       string `json:"emotion,omitempty"`
	Revisit       string `json:"revisit,omitempty"`
	Additional    string `json:"additional_info,omitempty"`
}

// HTMLFields configures the HTML adapter.
type HTMLFields struct {
	// Item selects one element per review, newest first.
	Item string `json:"item"`
	Fields
}

// JSONFields configures the JSON adapter.
type JSONFields struct {
	// Items selects the review array in the response.
	Items string `json:"items"`
	// HasMore, when set, must evaluate truthy for the next page to be requested.
	HasMore string `json:"has_more,omitempty"`
	Fields
}

// Validate checks a definition and applies defaults.
func (d *Definition) Validate() error {
	d.ID = model.Portal(strings.ToLower(strings.TrimSpace(string(d.ID))))
	if !d.ID.Valid() {
		return fmt.Errorf("invalid portal id %q", d.ID)
	}
	d.Kind = strings.ToLower(strings.TrimSpace(d.Kind))
	d.URL = strings.TrimSpace(d.URL)
	if d.URL == "" {
		return fmt.Errorf("portal %s: url is required", d.ID)
	}
	if strings.Contains(d.URL, "{source_url}") && !d.RequiresURL {
		return fmt.Errorf("portal %s: url uses {source_url} but requires_url is false", d.ID)
	}
	switch {
	case d.MaxPages <= 0:
		d.MaxPages = defaultMaxPages
	case d.MaxPages > maxPagesCeiling:
		d.MaxPages = maxPagesCeiling
	}

	switch d.Kind {
	case KindHTML:
		if d.HTML == nil || strings.TrimSpace(d.HTML.Item) == "" {
			return fmt.Errorf("portal %s: html.item selector is required", d.ID)
		}
		return d.HTML.Fields.validate(d.ID)
	case KindJSON:
		if d.JSON == nil || strings.TrimSpace(d.JSON.Items) == "" {
			return fmt.Errorf("portal %s: json.items expression is required", d.ID)
		}
		return d.JSON.Fields.validate(d.ID)
	default:
		return fmt.Errorf("portal %s: unknown kind %q (valid: html, json)", d.ID, d.Kind)
	}
}

func (f *Fields) validate(id model.Portal) error {
	if strings.TrimSpace(f.Date) == "" {
		return fmt.Errorf("portal %s: date field is required", id)
	}
	if f.Content == "" && f.Rating == "" && f.Nickname == "" {
		return fmt.Errorf("portal %s: at least one of content, rating, nickname is required", id)
	}
	return nil
}

// PageURL expands the URL template for a page (1-based).
func (d *Definition) PageURL(company, sourceURL string, page int) (string, error) {
	if d.RequiresURL && sourceURL == "" {
		return "", errors.New("source url is required")
	}
	pageSize := max(d.PageSize, 1)
	r := strings.NewReplacer(
		"{source_url}", sourceURL,
		"{company}", url.QueryEscape(company),
		"{page}", strconv.Itoa(page),
		"{offset}", strconv.Itoa((page-1)*pageSize),
	)
	out := r.Replace(d.URL)
	if _, err := url.ParseRequestURI(out); err != nil {
		return "", fmt.Errorf("portal %s: invalid url %q: %w", d.ID, out, err)
	}
	return out, nil
}

// PageBody expands the request body template for a page.
func (d *Definition) PageBody(company string, page int) []byte {
	if d.Body == "" {
		return nil
	}
	pageSize := max(d.PageSize, 1)
	r := strings.NewReplacer(
		"{company}", company,
		"{page}", strconv.Itoa(page),
		"{offset}", strconv.Itoa((page-1)*pageSize),
	)
	return []byte(r.Replace(d.Body))
}
