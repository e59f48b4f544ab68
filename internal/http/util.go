package httpx

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/target/review-harvester/internal/errors"
)

// intQuery reads a non-negative integer query param. A missing param yields def;
// anything else that is not a non-negative integer is a validation error naming the param.
func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.ValidationField(key, key+" must be a non-negative integer")
	}
	return v, nil
}
