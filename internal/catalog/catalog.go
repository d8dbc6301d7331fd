// Package catalog reads the static opportunities catalog.
//
// The catalog is a file maintained by the content team, shaped as
//
//	{"opportunities": [{"key": "...", "categories": ["..."], ...}, ...]}
//
// in JSON, or the same structure in YAML when the file ends in .yaml or
// .yml. It is re-read on every call so edits show up without a restart.
// Records are returned as decoded maps and never reshaped.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/picketly/api/internal/model"
)

type file struct {
	Opportunities []model.Opportunity `json:"opportunities" yaml:"opportunities"`
}

// Loader reads the catalog from a path on disk.
type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads and decodes the whole catalog. A file without an
// "opportunities" key yields an empty, non-nil list.
func (l *Loader) Load(ctx context.Context) ([]model.Opportunity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("catalog: reading %s: %w", l.path, err)
	}

	var f file
	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("catalog: decoding yaml %s: %w", l.path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("catalog: decoding json %s: %w", l.path, err)
		}
	}

	if f.Opportunities == nil {
		f.Opportunities = []model.Opportunity{}
	}
	return f.Opportunities, nil
}

// Filter returns the records whose categories contain category. An empty
// (or all-space) category returns opps unchanged.
func Filter(opps []model.Opportunity, category string) []model.Opportunity {
	category = strings.TrimSpace(category)
	if category == "" {
		return opps
	}
	out := make([]model.Opportunity, 0, len(opps))
	for _, o := range opps {
		if o.HasCategory(category) {
			out = append(out, o)
		}
	}
	return out
}
