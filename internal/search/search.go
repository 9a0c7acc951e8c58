// Package search is the hybrid retrieval orchestrator: it runs one or more
// signal passes (full-text, semantic, graph) over the store and fuses them
// into a single ranked result list with per-signal provenance.
package search

import (
	"context"
	"sort"

	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/embedding"
	"github.com/niklasschaeffer/open-mem/internal/graph"
	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/store"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

const (
	signalFTS   = "fts"
	signalVec   = "vector"
	signalGraph = "graph"
)

// Orchestrator runs a search.Query against the store, choosing between
// filter-only, semantic, and hybrid strategies.
type Orchestrator struct {
	Store    *store.Store
	Embedder embedding.Embedder
	Reranker Reranker
	Config   config.SearchConfig
}

// Reranker reorders a candidate shortlist using a stronger (typically
// LLM-backed) relevance signal; optional, gated by Config.RerankingEnabled.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []types.SearchResult) ([]types.SearchResult, error)
}

// Query parameterises one search call.
type Query struct {
	Text        string
	Strategy    types.SearchStrategy
	ProjectPath string
	SessionID   string
	Type        types.ObservationType
	Limit       int
}

// New builds an Orchestrator, defaulting an unset RRFK to 60 (the standard
// reciprocal-rank-fusion constant) rather than letting a zero divide into
// an oversized 1/(0+rank) score.
func New(s *store.Store, embedder embedding.Embedder, reranker Reranker, cfg config.SearchConfig) *Orchestrator {
	if cfg.RRFK <= 0 {
		cfg.RRFK = 60
	}
	return &Orchestrator{Store: s, Embedder: embedder, Reranker: reranker, Config: cfg}
}

// Run executes query, choosing a strategy (Query.Strategy, falling back to
// Config.DefaultStrategy, falling back to hybrid) and returning a ranked
// result list. Results are limited to one project only when
// Query.ProjectPath is set; an empty ProjectPath searches every project.
func (o *Orchestrator) Run(ctx context.Context, q Query) ([]types.SearchResult, error) {
	timer := logging.StartTimer(logging.CategorySearch, "Run")
	defer timer.Stop()

	strategy := q.Strategy
	if strategy == "" {
		strategy = types.SearchStrategy(o.Config.DefaultStrategy)
	}
	if strategy == "" {
		strategy = types.StrategyHybrid
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	ftsOpts := types.SearchOptions{
		Query:       q.Text,
		ProjectPath: q.ProjectPath,
		SessionID:   q.SessionID,
		Type:        q.Type,
		Limit:       limit * 3,
	}

	var ftsRanked []rankedHit
	var vecRanked []rankedHit

	switch strategy {
	case types.StrategyFilterOnly:
		hits, err := o.Store.Search(ftsOpts)
		if err != nil {
			return nil, err
		}
		for i, h := range hits {
			ftsRanked = append(ftsRanked, rankedHit{observation: h.Observation, rank: i + 1, signal: signalFTS, score: h.Rank})
		}
	case types.StrategySemantic:
		vecRanked = o.semanticPass(ctx, q, limit*3)
	default: // hybrid
		hits, err := o.Store.Search(ftsOpts)
		if err != nil {
			return nil, err
		}
		for i, h := range hits {
			ftsRanked = append(ftsRanked, rankedHit{observation: h.Observation, rank: i + 1, signal: signalFTS, score: h.Rank})
		}
		vecRanked = o.semanticPass(ctx, q, limit*3)
	}

	fused := fuseRRF(o.Config.RRFK, ftsRanked, vecRanked)

	if o.Config.GraphEnabled && len(fused) > 0 {
		o.annotateGraph(fused)
	}

	results := toResults(fused)
	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}

	if o.Config.RerankingEnabled && o.Reranker != nil && len(results) > 0 {
		max := o.Config.RerankingMaxCandidates
		if max <= 0 || max > len(results) {
			max = len(results)
		}
		reranked, err := o.Reranker.Rerank(ctx, q.Text, results[:max])
		if err != nil {
			logging.Get(logging.CategorySearch).Warn("rerank failed, keeping fused order: %v", err)
		} else {
			results = append(reranked, results[max:]...)
		}
	}

	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// semanticPass embeds the query and runs vector KNN, degrading to no
// results (not an error) when embedding is disabled or fails.
func (o *Orchestrator) semanticPass(ctx context.Context, q Query, k int) []rankedHit {
	if o.Embedder == nil {
		return nil
	}
	vec, err := o.Embedder.Embed(ctx, q.Text)
	if err != nil {
		logging.Get(logging.CategorySearch).Warn("query embedding failed, dropping semantic signal: %v", err)
		return nil
	}
	candidates, err := o.Store.VecSearch(vec, k)
	if err != nil || len(candidates) == 0 {
		return nil
	}

	out := make([]rankedHit, 0, len(candidates))
	for i, c := range candidates {
		obs, err := o.Store.GetObservation(c.ID)
		if err != nil {
			continue
		}
		if q.ProjectPath != "" && !o.inProject(obs, q.ProjectPath) {
			continue
		}
		out = append(out, rankedHit{
			observation: *obs,
			rank:        i + 1,
			signal:      signalVec,
			score:       c.Similarity,
			distance:    c.Distance,
			similarity:  c.Similarity,
		})
	}
	return out
}

// inProject reports whether obs belongs to a session under projectPath,
// used to apply project isolation to the vector KNN pass (which, unlike
// Store.Search, has no join through sessions to filter on directly).
func (o *Orchestrator) inProject(obs *types.Observation, projectPath string) bool {
	sess, err := o.Store.GetSession(obs.SessionID)
	if err != nil {
		return false
	}
	return sess.ProjectPath == projectPath
}

func (o *Orchestrator) annotateGraph(fused map[string]*fusedHit) {
	radius := o.Config.GraphRadius
	for _, f := range fused {
		nbs, err := graph.Neighbours(o.Store, "observation", f.observation.ID, radius)
		if err != nil || len(nbs) == 0 {
			continue
		}
		f.matchedBy = appendUnique(f.matchedBy, signalGraph)
		f.signals = append(f.signals, types.SignalScore{Signal: signalGraph, Score: float64(len(nbs)), Rank: 0})
	}
}

type rankedHit struct {
	observation types.Observation
	rank        int
	signal      string
	score       float64
	distance    float64
	similarity  float64
}

type fusedHit struct {
	observation types.Observation
	rrf         float64
	matchedBy   []string
	signals     []types.SignalScore
	distance    float64
	similarity  float64
}

// fuseRRF combines ranked signal lists with reciprocal rank fusion:
// score(doc) = sum over signals of 1/(k + rank). Signals the document
// doesn't appear in simply don't contribute.
func fuseRRF(k int, signalLists ...[]rankedHit) map[string]*fusedHit {
	fused := make(map[string]*fusedHit)
	for _, list := range signalLists {
		for _, hit := range list {
			f, ok := fused[hit.observation.ID]
			if !ok {
				f = &fusedHit{observation: hit.observation}
				fused[hit.observation.ID] = f
			}
			f.rrf += 1.0 / float64(k+hit.rank)
			f.matchedBy = appendUnique(f.matchedBy, hit.signal)
			f.signals = append(f.signals, types.SignalScore{Signal: hit.signal, Score: hit.score, Rank: hit.rank})
			if hit.signal == signalVec {
				f.distance = hit.distance
				f.similarity = hit.similarity
			}
		}
	}
	return fused
}

const signalRRF = "rrf"

func toResults(fused map[string]*fusedHit) []types.SearchResult {
	out := make([]types.SearchResult, 0, len(fused))
	for _, f := range fused {
		explain := append([]types.SignalScore{{Signal: signalRRF, Score: f.rrf}}, f.signals...)
		out = append(out, types.SearchResult{
			Observation:      f.observation,
			Snippet:          snippet(f.observation.Narrative),
			MatchedBy:        f.matchedBy,
			Explain:          explain,
			VectorDistance:   f.distance,
			VectorSimilarity: f.similarity,
		})
	}
	return out
}

// sortResults orders by the fused RRF score recorded in Explain, falling
// back to importance desc, createdAt desc, id when scores tie.
func sortResults(results []types.SearchResult) {
	scoreOf := func(r types.SearchResult) float64 {
		for _, sig := range r.Explain {
			if sig.Signal == signalRRF {
				return sig.Score
			}
		}
		return 0
	}
	sort.SliceStable(results, func(i, j int) bool {
		si, sj := scoreOf(results[i]), scoreOf(results[j])
		if si != sj {
			return si > sj
		}
		if results[i].Observation.Importance != results[j].Observation.Importance {
			return results[i].Observation.Importance > results[j].Observation.Importance
		}
		if !results[i].Observation.CreatedAt.Equal(results[j].Observation.CreatedAt) {
			return results[i].Observation.CreatedAt.After(results[j].Observation.CreatedAt)
		}
		return results[i].Observation.ID < results[j].Observation.ID
	})
}

func snippet(narrative string) string {
	const maxLen = 200
	if len(narrative) <= maxLen {
		return narrative
	}
	return narrative[:maxLen] + "..."
}

func appendUnique(ss []string, s string) []string {
	for _, existing := range ss {
		if existing == s {
			return ss
		}
	}
	return append(ss, s)
}
