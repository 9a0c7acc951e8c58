// Package diff computes field-level differences between two revisions of
// an observation, used by the lineage dashboard query to explain what a
// revision actually changed instead of just that a new row exists.
package diff

import (
	"fmt"
	"sort"

	"github.com/niklasschaeffer/open-mem/internal/types"
)

// Fields lists every column a revision diff considers, in display order.
var Fields = []string{
	"title", "subtitle", "narrative", "type",
	"facts", "concepts", "filesRead", "filesModified", "importance",
}

// Observations compares before and after, returning one RevisionDiffField
// per changed field in Fields order. Slice fields (facts, concepts,
// filesRead, filesModified) compare as sets: reordering alone is not a
// change, additions and removals are.
func Observations(before, after *types.Observation) []types.RevisionDiffField {
	if before == nil || after == nil {
		return nil
	}

	var out []types.RevisionDiffField
	add := func(field string, b, a interface{}, summary string) {
		out = append(out, types.RevisionDiffField{Field: field, Before: b, After: a, Summary: summary})
	}

	if before.Title != after.Title {
		add("title", before.Title, after.Title, fmt.Sprintf("title changed from %q to %q", before.Title, after.Title))
	}
	if before.Subtitle != after.Subtitle {
		add("subtitle", before.Subtitle, after.Subtitle, "subtitle changed")
	}
	if before.Narrative != after.Narrative {
		add("narrative", before.Narrative, after.Narrative, "narrative rewritten")
	}
	if before.Type != after.Type {
		add("type", before.Type, after.Type, fmt.Sprintf("type changed from %s to %s", before.Type, after.Type))
	}
	if d := diffSet(before.Facts, after.Facts); d != nil {
		add("facts", before.Facts, after.Facts, d.summary("fact"))
	}
	if d := diffSet(before.Concepts, after.Concepts); d != nil {
		add("concepts", before.Concepts, after.Concepts, d.summary("concept"))
	}
	if d := diffSet(before.FilesRead, after.FilesRead); d != nil {
		add("filesRead", before.FilesRead, after.FilesRead, d.summary("file read"))
	}
	if d := diffSet(before.FilesModified, after.FilesModified); d != nil {
		add("filesModified", before.FilesModified, after.FilesModified, d.summary("file modified"))
	}
	if before.Importance != after.Importance {
		add("importance", before.Importance, after.Importance, fmt.Sprintf("importance changed from %d to %d", before.Importance, after.Importance))
	}

	return out
}

// Lineage expands a full revision chain (oldest to newest, as returned by
// Store.GetLineage) into the diff between each consecutive pair.
func Lineage(chain []*types.Observation) [][]types.RevisionDiffField {
	if len(chain) < 2 {
		return nil
	}
	out := make([][]types.RevisionDiffField, 0, len(chain)-1)
	for i := 1; i < len(chain); i++ {
		out = append(out, Observations(chain[i-1], chain[i]))
	}
	return out
}

type setDelta struct {
	added   []string
	removed []string
}

func (d *setDelta) summary(noun string) string {
	switch {
	case len(d.added) > 0 && len(d.removed) > 0:
		return fmt.Sprintf("%d %s(s) added, %d removed", len(d.added), noun, len(d.removed))
	case len(d.added) > 0:
		return fmt.Sprintf("%d %s(s) added", len(d.added), noun)
	default:
		return fmt.Sprintf("%d %s(s) removed", len(d.removed), noun)
	}
}

// diffSet returns nil when before and after contain the same elements
// regardless of order; otherwise the added/removed sets.
func diffSet(before, after []string) *setDelta {
	beforeSet := toSet(before)
	afterSet := toSet(after)

	var added, removed []string
	for v := range afterSet {
		if !beforeSet[v] {
			added = append(added, v)
		}
	}
	for v := range beforeSet {
		if !afterSet[v] {
			removed = append(removed, v)
		}
	}
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}
	sort.Strings(added)
	sort.Strings(removed)
	return &setDelta{added: added, removed: removed}
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}
