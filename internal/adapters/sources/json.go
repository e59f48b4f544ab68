package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/review-harvester/internal/domain/model"
	"github.com/target/review-harvester/internal/ports"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

type jmespathLibEvaluator struct{}

func (jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// JSONAdapter reads review listings from JSON APIs.
type JSONAdapter struct {
	pager
	fields JSONFields
	eval   JMESPathEvaluator
}

var _ ports.SourceAdapter = (*JSONAdapter)(nil)

// NewJSONAdapter builds an adapter for a validated json definition. A nil evaluator uses go-jmespath.
func NewJSONAdapter(def Definition, eval JMESPathEvaluator, logger *slog.Logger) (*JSONAdapter, error) {
	if def.Kind != KindJSON || def.JSON == nil {
		return nil, fmt.Errorf("portal %s: not a json definition", def.ID)
	}
	if eval == nil {
		eval = jmespathLibEvaluator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	exprs := append(fieldExprs(def.JSON.Items, def.JSON.Fields), def.JSON.HasMore)
	for _, expr := range exprs {
		if err := eval.Validate(expr); err != nil {
			return nil, fmt.Errorf("portal %s: invalid expression %q: %w", def.ID, expr, err)
		}
	}
	return &JSONAdapter{
		pager:  pager{def: def, logger: logger.With("portal", def.ID)},
		fields: *def.JSON,
		eval:   eval,
	}, nil
}

// Extract implements ports.SourceAdapter.
func (a *JSONAdapter) Extract(ctx context.Context, req ports.ExtractRequest, emit ports.EmitFunc) error {
	return a.run(ctx, req, emit, a.parse)
}

func (a *JSONAdapter) parse(page *ports.Page) ([]model.RawReview, bool, error) {
	var doc any
	if err := json.Unmarshal(page.Body, &doc); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	found, err := a.eval.Evaluate(a.fields.Items, doc)
	if err != nil {
		return nil, false, fmt.Errorf("items: %w", err)
	}
	if found == nil {
		return nil, false, nil
	}
	list, ok := found.([]any)
	if !ok {
		return nil, false, fmt.Errorf("items: expected array, got %T", found)
	}

	items := make([]model.RawReview, 0, len(list))
	for i, item := range list {
		raw, err := a.record(item)
		if err != nil {
			return nil, false, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, raw)
	}

	more := true
	if a.fields.HasMore != "" {
		v, err := a.eval.Evaluate(a.fields.HasMore, doc)
		if err != nil {
			return nil, false, fmt.Errorf("has_more: %w", err)
		}
		more = truthy(stringify(v))
	}
	return items, more, nil
}

func (a *JSONAdapter) record(item any) (model.RawReview, error) {
	f := a.fields.Fields
	var firstErr error
	get := func(expr string) string {
		if expr == "" {
			return ""
		}
		v, err := a.eval.Evaluate(expr, item)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", expr, err)
			}
			return ""
		}
		return stringify(v)
	}

	raw := model.RawReview{
		Date:           get(f.Date),
		Content:        strings.TrimSpace(get(f.Content)),
		Nickname:       strings.TrimSpace(get(f.Nickname)),
		Title:          optional(get(f.Title)),
		VisitKeyword:   optional(get(f.VisitKeyword)),
		ReviewKeyword:  optional(get(f.ReviewKeyword)),
		VisitType:      optional(get(f.VisitType)),
		Emotion:        optional(get(f.Emotion)),
		AdditionalInfo: optional(get(f.Additional)),
	}
	if f.Rating != "" {
		raw.Rating = parseRating(get(f.Rating))
	}
	if f.Revisit != "" {
		raw.Revisit = truthy(get(f.Revisit))
	}
	return raw, firstErr
}

// stringify renders a JMESPath result as text. Lists of scalars are joined with ", ".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
