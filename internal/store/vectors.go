package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// SetEmbedding stores (or replaces) the embedding vector for an observation.
// This both writes the JSON-encoded vector row used by brute-force cosine
// search and, when the sqlite-vec extension is active, upserts the native
// vec0 index.
func (s *Store) SetEmbedding(id string, vec []float32, obsType types.ObservationType) error {
	timer := logging.StartTimer(logging.CategoryStore, "SetEmbedding")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	vecJSON, err := json.Marshal(vec)
	if err != nil {
		return types.Internal(err, "marshal embedding")
	}

	_, err = s.db.Exec(
		`INSERT INTO vectors (observation_id, embedding_json, dims, type) VALUES (?, ?, ?, ?)
		 ON CONFLICT(observation_id) DO UPDATE SET embedding_json = excluded.embedding_json, dims = excluded.dims, type = excluded.type`,
		id, string(vecJSON), len(vec), obsType,
	)
	if err != nil {
		return types.Internal(err, "store embedding row")
	}

	if s.vectorExt {
		if err := s.vecUpsertNative(id, vec); err != nil {
			logging.Get(logging.CategoryStore).Warn("vec0 upsert failed for %s, brute-force fallback remains available: %v", id, err)
		}
	}
	return nil
}

// ensureVecIndex lazily creates the vec0 virtual table the first time a
// real embedding dimension is seen (DESIGN.md's "probe from first vector"
// open-question decision), mirroring the teacher's initVecIndex.
func (s *Store) ensureVecIndex(dim int) error {
	if dim <= 0 {
		return nil
	}
	_, err := s.db.Exec(fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS vec_index USING vec0(embedding float[%d], obs_id TEXT)", dim))
	return err
}

// vecUpsertNative is VecUpsert minus the repository lock, invoked by
// SetEmbedding which already holds it. obs_id is stored as an auxiliary
// column so a KNN hit can be joined back to its observation.
func (s *Store) vecUpsertNative(id string, vec []float32) error {
	if err := s.ensureVecIndex(len(vec)); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM vec_index WHERE obs_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO vec_index (embedding, obs_id) VALUES (?, ?)`, encodeFloat32Slice(vec), id)
	return err
}

func encodeFloat32Slice(vec []float32) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, vec)
	return buf.Bytes()
}

// VecUpsert stores a vector into the native vec0 index directly, leaving
// the JSON vectors row untouched.
func (s *Store) VecUpsert(id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.vectorExt {
		return nil
	}
	return s.vecUpsertNative(id, vec)
}

// VecCandidate is a similarity search hit: an observation id plus its
// distance/similarity to the query vector.
type VecCandidate struct {
	ID         string
	Similarity float64
	Distance   float64
}

// FindSimilar does a brute-force cosine-similarity scan over the recent N
// rows of a given observation type, used only for dedupe/conflict
// evaluation (never for primary retrieval).
func (s *Store) FindSimilar(vec []float32, obsType types.ObservationType, threshold float64, limit int) ([]VecCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT observation_id, embedding_json FROM vectors WHERE type = ? ORDER BY rowid DESC LIMIT 500`,
		obsType,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("FindSimilar query failed, degrading to empty: %v", err)
		return nil, nil
	}
	defer rows.Close()

	var candidates []VecCandidate
	for rows.Next() {
		var id, vecJSON string
		if err := rows.Scan(&id, &vecJSON); err != nil {
			continue
		}
		var other []float32
		if err := json.Unmarshal([]byte(vecJSON), &other); err != nil {
			continue
		}
		sim := CosineSimilarity(vec, other)
		if sim >= threshold {
			candidates = append(candidates, VecCandidate{ID: id, Similarity: sim, Distance: 1 - sim})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Similarity > candidates[j].Similarity })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// VecSearch runs KNN over the full vector index; falls back to brute-force
// cosine similarity when the native index is unavailable (§9 "native KNN
// extension preferred, brute-force fallback used at lower limit").
func (s *Store) VecSearch(query []float32, k int) ([]VecCandidate, error) {
	if s.HasVectorIndex() {
		if hits, err := s.vecSearchNative(query, k); err == nil {
			return hits, nil
		} else {
			logging.Get(logging.CategoryStore).Warn("native vec0 KNN failed, degrading to brute-force: %v", err)
		}
	}
	return s.bruteForceKNN(query, nil, k)
}

func (s *Store) vecSearchNative(query []float32, k int) ([]VecCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT obs_id, distance FROM vec_index WHERE embedding MATCH ? AND k = ? ORDER BY distance`,
		encodeFloat32Slice(query), k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VecCandidate
	for rows.Next() {
		var id string
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			continue
		}
		out = append(out, VecCandidate{ID: id, Distance: dist, Similarity: 1 - dist})
	}
	return out, nil
}

// VecSearchSubset runs KNN restricted to candidateIds, used to combine a
// filter pass with a semantic rerank.
func (s *Store) VecSearchSubset(query []float32, candidateIDs []string, k int) ([]VecCandidate, error) {
	return s.bruteForceKNN(query, candidateIDs, k)
}

func (s *Store) bruteForceKNN(query []float32, candidateIDs []string, k int) ([]VecCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows interface {
		Next() bool
		Scan(...interface{}) error
		Close() error
	}
	var err error
	if len(candidateIDs) > 0 {
		placeholders := make([]interface{}, len(candidateIDs))
		qs := ""
		for i, id := range candidateIDs {
			placeholders[i] = id
			if i > 0 {
				qs += ","
			}
			qs += "?"
		}
		rows, err = s.db.Query(`SELECT observation_id, embedding_json FROM vectors WHERE observation_id IN (`+qs+`)`, placeholders...)
	} else {
		rows, err = s.db.Query(`SELECT observation_id, embedding_json FROM vectors`)
	}
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("vector KNN query failed, degrading to empty: %v", err)
		return nil, nil
	}
	defer rows.Close()

	var candidates []VecCandidate
	for rows.Next() {
		var id, vecJSON string
		if err := rows.Scan(&id, &vecJSON); err != nil {
			continue
		}
		var other []float32
		if err := json.Unmarshal([]byte(vecJSON), &other); err != nil {
			continue
		}
		sim := CosineSimilarity(query, other)
		candidates = append(candidates, VecCandidate{ID: id, Similarity: sim, Distance: 1 - sim})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Similarity > candidates[j].Similarity })
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// CosineSimilarity computes cosine similarity between two vectors of equal
// length, returning 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
