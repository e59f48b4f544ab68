// Package errors derives low-cardinality error class names for metric tags and logs.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	"github.com/target/review-harvester/internal/domain/harvest"
	"github.com/target/review-harvester/internal/domain/review"
)

// Classify returns a normalized error class suitable for tagging metrics/logs.
// Known harvest conditions map to fixed names; anything else is named after the
// innermost concrete error type in snake_case-ish form.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case goerrors.Is(err, harvest.ErrJobCancelled):
		return "cancelled"
	case goerrors.Is(err, harvest.ErrCutoffReached):
		return "cutoff"
	case goerrors.Is(err, review.ErrUnparseableDate):
		return "unparseable_date"
	case goerrors.Is(err, review.ErrInvalidRecord):
		return "invalid_record"
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "context_canceled"
	case harvest.IsFatal(err):
		return "session_lost"
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
