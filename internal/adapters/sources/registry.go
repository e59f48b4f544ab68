package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/target/review-harvester/internal/domain/model"
	"github.com/target/review-harvester/internal/ports"
)

type definitionsFile struct {
	Portals []Definition `json:"portals"`
}

// Parse reads {"portals": [...]} and validates every definition.
func Parse(r io.Reader) ([]Definition, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var file definitionsFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode portal definitions: %w", err)
	}

	seen := make(map[model.Portal]struct{}, len(file.Portals))
	var errs []error
	for i := range file.Portals {
		def := &file.Portals[i]
		if err := def.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[def.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate portal id %q", def.ID))
			continue
		}
		seen[def.ID] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return file.Portals, nil
}

// LoadFile parses the definitions file at path.
func LoadFile(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open portal definitions: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Order moves the listed portals to the front in the given sequence.
// Unlisted portals keep their file order after them.
func Order(defs []Definition, order []string) ([]Definition, error) {
	byID := make(map[model.Portal]int, len(defs))
	for i, d := range defs {
		byID[d.ID] = i
	}
	used := make([]bool, len(defs))
	out := make([]Definition, 0, len(defs))
	for _, id := range order {
		p := model.Portal(strings.ToLower(strings.TrimSpace(id)))
		i, ok := byID[p]
		if !ok {
			return nil, fmt.Errorf("portal order names unknown portal %q", p)
		}
		if used[i] {
			continue
		}
		used[i] = true
		out = append(out, defs[i])
	}
	for i, d := range defs {
		if !used[i] {
			out = append(out, d)
		}
	}
	return out, nil
}

// Build constructs one adapter per definition, preserving order.
func Build(defs []Definition, logger *slog.Logger) ([]ports.SourceAdapter, error) {
	adapters := make([]ports.SourceAdapter, 0, len(defs))
	for _, def := range defs {
		var (
			a   ports.SourceAdapter
			err error
		)
		switch def.Kind {
		case KindHTML:
			a, err = NewHTMLAdapter(def, logger)
		case KindJSON:
			a, err = NewJSONAdapter(def, nil, logger)
		default:
			err = fmt.Errorf("portal %s: unknown kind %q", def.ID, def.Kind)
		}
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// LoadAdapters reads, orders and builds the adapters for a definitions file.
// An empty path yields no adapters.
func LoadAdapters(path string, order []string, logger *slog.Logger) ([]ports.SourceAdapter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	defs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	defs, err = Order(defs, order)
	if err != nil {
		return nil, err
	}
	return Build(defs, logger)
}
