// Package graph layers a cycle-safe, depth-bounded neighbours expansion on
// top of the store's single-hop QueryLinks, used by the search orchestrator
// to pull in entities related to a result set without walking the whole
// knowledge graph.
package graph

import (
	"github.com/niklasschaeffer/open-mem/internal/store"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

const maxDepth = 2

// Neighbours does a breadth-first expansion from (entityType, entityName)
// out to depth hops (clamped to maxDepth), merging repeated edges to the
// same entity into one GraphNeighbour with accumulated observation
// provenance and the shallowest depth at which it was reached.
func Neighbours(s *store.Store, entityType, entityName string, depth int) ([]types.GraphNeighbour, error) {
	if depth <= 0 || depth > maxDepth {
		depth = maxDepth
	}

	type key struct{ t, n string }
	start := key{entityType, entityName}

	visited := map[key]bool{start: true}
	merged := make(map[key]*types.GraphNeighbour)

	frontier := []key{start}
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []key
		for _, k := range frontier {
			links, err := s.QueryLinks(k.t, k.n, "both")
			if err != nil {
				continue
			}
			for _, l := range links {
				var other key
				if l.FromType == k.t && l.FromName == k.n {
					other = key{l.ToType, l.ToName}
				} else {
					other = key{l.FromType, l.FromName}
				}
				if other == start {
					continue
				}

				if nb, ok := merged[other]; ok {
					if l.ObservationID != "" {
						nb.ObservationIDs = appendUnique(nb.ObservationIDs, l.ObservationID)
					}
				} else {
					var obsIDs []string
					if l.ObservationID != "" {
						obsIDs = []string{l.ObservationID}
					}
					merged[other] = &types.GraphNeighbour{
						Entity:         types.Entity{Type: other.t, Name: other.n},
						Relation:       l.Type,
						Depth:          d,
						ObservationIDs: obsIDs,
					}
				}

				if !visited[other] {
					visited[other] = true
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	out := make([]types.GraphNeighbour, 0, len(merged))
	for _, nb := range merged {
		out = append(out, *nb)
	}
	return out, nil
}

func appendUnique(ss []string, s string) []string {
	for _, existing := range ss {
		if existing == s {
			return ss
		}
	}
	return append(ss, s)
}
