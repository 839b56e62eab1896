// Package schedule holds the time-ordered list of scheduled blocks (orders,
// changeovers, CIP, lunch breaks, planned breakdowns). Loading the week
// schedule from the master-data workbook is out of scope (spec.md §1);
// Loader is the narrow interface the simulator depends on, with FileLoader
// as the in-scope, YAML-shaped concrete collaborator.
package schedule

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/domain"
)

// Loader returns the fully populated, validated schedule.
type Loader interface {
	Load() (*Schedule, error)
}

// Schedule is the read-only, time-ordered list of blocks for the line.
type Schedule struct {
	Blocks []domain.ScheduledBlock
}

// ActiveAt returns the ORDER block (if any) and the non-order block (if
// any) active at t, per spec.md §4.6 step 2 ("at most one of kind
// CHANGEOVER/CIP/LUNCH/BREAKDOWN; plus at most one ORDER").
func (s *Schedule) ActiveAt(t time.Time) (order *domain.ScheduledBlock, other *domain.ScheduledBlock) {
	for i := range s.Blocks {
		b := &s.Blocks[i]
		if !t.Before(b.Start) && t.Before(b.End) {
			if b.Kind == domain.BlockOrder {
				order = b
			} else {
				other = b
			}
		}
	}
	return
}

func build(blocks []domain.ScheduledBlock) (*Schedule, error) {
	sorted := append([]domain.ScheduledBlock(nil), blocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	lastOrder, lastOther := -1, -1
	for i, b := range sorted {
		if !b.Start.Before(b.End) {
			return nil, fmt.Errorf("schedule block %d (%s): start must be before end", i, b.Kind)
		}
		{
			// ORDER blocks may not overlap other ORDER blocks, and
			// non-order kinds (CHANGEOVER/CIP/LUNCH/BREAKDOWN) may not
			// overlap other non-order blocks. An ORDER may overlap a
			// non-order block: that is the documented case of a planned
			// breakdown or changeover landing inside an active order
			// (spec.md §4.6 step 2), so only same-category overlaps are
			// rejected here. The state machine's precedence table
			// arbitrates which one wins a given tick.
			prevIdx := lastOther
			if b.Kind == domain.BlockOrder {
				prevIdx = lastOrder
			}
			if prevIdx >= 0 && sorted[prevIdx].End.After(b.Start) {
				return nil, fmt.Errorf("schedule block %d (%s) overlaps block %d (%s)", prevIdx, sorted[prevIdx].Kind, i, b.Kind)
			}
			if b.Kind == domain.BlockOrder {
				lastOrder = i
			} else {
				lastOther = i
			}
		}
		if b.Kind == domain.BlockOrder && b.Order == nil {
			return nil, fmt.Errorf("schedule block %d: ORDER block missing order payload", i)
		}
	}

	return &Schedule{Blocks: sorted}, nil
}

// FileLoader loads the schedule from a YAML file with a top-level
// `blocks:` list.
type FileLoader struct {
	Path string
}

type fileFormat struct {
	Blocks []domain.ScheduledBlock `yaml:"blocks"`
}

// Load reads, sorts and validates the schedule file.
func (l FileLoader) Load() (*Schedule, error) {
	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("reading schedule %q: %w", l.Path, err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", l.Path, err)
	}

	return build(doc.Blocks)
}
