// Package catalogue holds the read-only SKU/BOM tables. Loading the
// workbook itself is explicitly out of scope (spec.md §1); Loader is the
// narrow interface the simulator depends on, with FileLoader standing in as
// the concrete, in-scope collaborator (YAML-shaped, mirroring the external
// spreadsheet's well-known columns per spec.md §6).
package catalogue

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/domain"
)

// Loader returns the fully populated, in-memory SKU catalogue.
type Loader interface {
	Load() (*Catalogue, error)
}

// Catalogue is the read-only SKU table, indexed both by id and by a stable
// 0-based position (used for the sku_index register, spec.md §6).
type Catalogue struct {
	SKUs    []domain.SKU
	byID    map[string]int
}

// Get returns the SKU with the given id and its 0-based index.
func (c *Catalogue) Get(id string) (domain.SKU, int, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return domain.SKU{}, 0, false
	}
	return c.SKUs[idx], idx, true
}

func build(skus []domain.SKU) (*Catalogue, error) {
	seen := make(map[string]int, len(skus))
	for i, s := range skus {
		if s.ID == "" {
			return nil, fmt.Errorf("sku at index %d has empty id", i)
		}
		if s.VolumeML <= 0 {
			return nil, fmt.Errorf("sku %q: volume_ml must be > 0", s.ID)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("duplicate sku id %q", s.ID)
		}
		seen[s.ID] = i
	}
	return &Catalogue{SKUs: skus, byID: seen}, nil
}

// FileLoader loads the catalogue from a YAML file with a top-level `skus:`
// list, standing in for the master-data workbook's SKU/BOM sheet.
type FileLoader struct {
	Path string
}

type fileFormat struct {
	SKUs []domain.SKU `yaml:"skus"`
}

// Load reads and validates the catalogue file.
func (l FileLoader) Load() (*Catalogue, error) {
	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("reading catalogue %q: %w", l.Path, err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalogue %q: %w", l.Path, err)
	}

	return build(doc.SKUs)
}
