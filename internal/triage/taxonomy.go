package triage

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed taxonomy.json
var defaultTaxonomy []byte

// Taxonomy is the classification data the triage queue runs on. It is
// injected configuration, not code: the keyword lists and category set
// can change without a deploy by pointing SHEPHERD_TAXONOMY_PATH at a
// replacement file.
type Taxonomy struct {
	// CriticalGroups holds urgent-keyword lists keyed by concept
	// (terminal illness, grief, emergency, mental-health crisis,
	// violence/abuse). Matching is case-insensitive substring.
	CriticalGroups map[string][]string `json:"critical_groups"`

	// Categories are the stored category values a request may carry.
	Categories []string `json:"categories"`

	// DisplayOrder fixes the triage-queue bucket sequence: Critical
	// first, Private last.
	DisplayOrder []string `json:"display_order"`
}

// DefaultTaxonomy returns the embedded taxonomy.
func DefaultTaxonomy() (Taxonomy, error) {
	var t Taxonomy
	if err := json.Unmarshal(defaultTaxonomy, &t); err != nil {
		return Taxonomy{}, fmt.Errorf("decode embedded taxonomy: %w", err)
	}
	return t, nil
}

// LoadTaxonomy reads a taxonomy from path, or the embedded default when
// path is empty.
func LoadTaxonomy(path string) (Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("read taxonomy: %w", err)
	}
	var t Taxonomy
	if err := json.Unmarshal(data, &t); err != nil {
		return Taxonomy{}, fmt.Errorf("decode taxonomy %s: %w", path, err)
	}
	return t, nil
}
