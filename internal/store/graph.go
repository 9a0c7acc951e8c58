package store

import (
	"database/sql"
	"fmt"

	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// StoreLink upserts a knowledge graph edge. Re-asserting the same
// (entityA, relation, entityB) triple bumps its weight rather than
// duplicating the row — repeated observation of the same fact should
// strengthen it, not multiply it.
func (s *Store) StoreLink(rel types.Relationship) error {
	timer := logging.StartTimer(logging.CategoryStore, "StoreLink")
	defer timer.Stop()

	if rel.FromName == "" || rel.Type == "" || rel.ToName == "" {
		return types.Validation("knowledge graph link requires fromName, type, and toName")
	}
	if rel.Weight <= 0 {
		rel.Weight = 1.0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO knowledge_graph (entity_a_type, entity_a_name, relation, entity_b_type, entity_b_name, weight, observation_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(entity_a_type, entity_a_name, relation, entity_b_type, entity_b_name)
		 DO UPDATE SET weight = weight + excluded.weight, observation_id = excluded.observation_id`,
		rel.FromType, rel.FromName, rel.Type, rel.ToType, rel.ToName, rel.Weight, nullableStr(rel.ObservationID),
	)
	if err != nil {
		return types.Internal(err, "store knowledge graph link")
	}
	return nil
}

// queryLinksLocked assumes the caller already holds s.mu (read or write);
// exported callers must not call this directly to avoid a double-lock
// deadlock against a pending writer.
func (s *Store) queryLinksLocked(entityType, entityName, direction string) ([]types.Relationship, error) {
	var query string
	switch direction {
	case "outgoing":
		query = `SELECT entity_a_type, entity_a_name, relation, entity_b_type, entity_b_name, weight, observation_id
			FROM knowledge_graph WHERE entity_a_type = ? AND entity_a_name = ?`
	case "incoming":
		query = `SELECT entity_a_type, entity_a_name, relation, entity_b_type, entity_b_name, weight, observation_id
			FROM knowledge_graph WHERE entity_b_type = ? AND entity_b_name = ?`
	default:
		query = `SELECT entity_a_type, entity_a_name, relation, entity_b_type, entity_b_name, weight, observation_id
			FROM knowledge_graph WHERE (entity_a_type = ? AND entity_a_name = ?) OR (entity_b_type = ? AND entity_b_name = ?)`
	}

	var args []interface{}
	if direction == "both" {
		args = []interface{}{entityType, entityName, entityType, entityName}
	} else {
		args = []interface{}{entityType, entityName}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, types.Internal(err, "query knowledge graph links")
	}
	defer rows.Close()

	var links []types.Relationship
	for rows.Next() {
		var r types.Relationship
		var obsID sql.NullString
		if err := rows.Scan(&r.FromType, &r.FromName, &r.Type, &r.ToType, &r.ToName, &r.Weight, &obsID); err != nil {
			continue
		}
		r.ObservationID = obsID.String
		links = append(links, r)
	}
	return links, nil
}

// QueryLinks retrieves edges touching (entityType, entityName) in the
// given direction ("outgoing", "incoming", or "both").
func (s *Store) QueryLinks(entityType, entityName, direction string) ([]types.Relationship, error) {
	timer := logging.StartTimer(logging.CategoryStore, "QueryLinks")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLinksLocked(entityType, entityName, direction)
}

// TraversePath runs a depth-bounded BFS from one entity to another,
// returning the edge chain that connects them.
func (s *Store) TraversePath(fromType, fromName, toType, toName string, maxDepth int) ([]types.Relationship, error) {
	timer := logging.StartTimer(logging.CategoryStore, "TraversePath")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if maxDepth <= 0 || maxDepth > 5 {
		maxDepth = 5
	}

	type node struct{ t, n string }
	key := func(t, n string) string { return t + "::" + n }
	start := node{fromType, fromName}
	target := key(toType, toName)

	type queueItem struct {
		node  node
		depth int
	}

	cameFrom := make(map[string]*types.Relationship)
	cameFrom[key(start.t, start.n)] = nil
	queue := []queueItem{{start, 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		curKey := key(current.node.t, current.node.n)

		if curKey == target {
			var path []types.Relationship
			k := target
			for {
				link := cameFrom[k]
				if link == nil {
					break
				}
				path = append([]types.Relationship{*link}, path...)
				k = key(link.FromType, link.FromName)
			}
			return path, nil
		}

		if current.depth >= maxDepth {
			continue
		}

		links, err := s.queryLinksLocked(current.node.t, current.node.n, "outgoing")
		if err != nil {
			continue
		}
		for _, link := range links {
			nk := key(link.ToType, link.ToName)
			if _, visited := cameFrom[nk]; !visited {
				l := link
				cameFrom[nk] = &l
				queue = append(queue, queueItem{node{link.ToType, link.ToName}, current.depth + 1})
			}
		}
	}

	return nil, types.NotFound(fmt.Sprintf("no path found from %s to %s", key(fromType, fromName), target))
}

// Neighbours returns the distinct entities directly linked to
// (entityType, entityName) in either direction (a single-hop lookup).
func (s *Store) Neighbours(entityType, entityName string) ([]types.GraphNeighbour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	links, err := s.queryLinksLocked(entityType, entityName, "both")
	if err != nil {
		return nil, err
	}

	var out []types.GraphNeighbour
	for _, l := range links {
		n := types.GraphNeighbour{Relation: l.Type, Depth: 1}
		if l.FromType == entityType && l.FromName == entityName {
			n.Entity = types.Entity{Type: l.ToType, Name: l.ToName}
		} else {
			n.Entity = types.Entity{Type: l.FromType, Name: l.FromName}
		}
		if l.ObservationID != "" {
			n.ObservationIDs = []string{l.ObservationID}
		}
		out = append(out, n)
	}
	return out, nil
}
