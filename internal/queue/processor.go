// Package queue drains durable pending captures into observations: each
// claimed row is compressed, checked against recent neighbours for
// supersede/drop, persisted, embedded, and mined for graph edges, with
// every step degrading gracefully rather than blocking the batch.
package queue

import (
	"context"
	"time"

	"github.com/niklasschaeffer/open-mem/internal/compress"
	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/conflict"
	"github.com/niklasschaeffer/open-mem/internal/embedding"
	"github.com/niklasschaeffer/open-mem/internal/entities"
	"github.com/niklasschaeffer/open-mem/internal/events"
	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/metrics"
	"github.com/niklasschaeffer/open-mem/internal/store"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// Processor wires the capture pipeline's middle stages together. All
// dependencies besides Store are optional: a nil Embedder, Extractor, Bus,
// or Metrics degrades that stage rather than failing the batch.
type Processor struct {
	Store      *store.Store
	Compressor compress.Compressor
	Embedder   embedding.Embedder
	Evaluator  *conflict.Evaluator
	Extractor  entities.Extractor
	Bus        *events.Bus
	Metrics    *metrics.Metrics
	Mode       *config.Mode
	Config     config.QueueConfig
}

// BatchResult tallies the outcome of one RunBatch call.
type BatchResult struct {
	Claimed   int
	Completed int
	Failed    int
	Dropped   int
}

// RunBatch claims up to Config.BatchSize pending rows and drives each
// through compression, conflict evaluation, persistence, embedding, and
// entity extraction. A single row's failure never aborts the batch.
func (p *Processor) RunBatch(ctx context.Context) (BatchResult, error) {
	timer := logging.StartTimer(logging.CategoryQueue, "RunBatch")
	defer timer.Stop()

	pending, err := p.Store.Claim(p.Config.BatchSize)
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Claimed: len(pending)}
	if len(pending) == 0 {
		return result, nil
	}

	for _, msg := range pending {
		action, err := p.processOne(ctx, msg)
		if err != nil {
			if failErr := p.Store.Fail(msg.ID, err.Error(), p.Config.MaxRetries); failErr != nil {
				logging.Get(logging.CategoryQueue).Error("failed to record failure for pending %s: %v", msg.ID, failErr)
			}
			result.Failed++
			continue
		}
		if completeErr := p.Store.Complete(msg.ID); completeErr != nil {
			logging.Get(logging.CategoryQueue).Error("failed to complete pending %s: %v", msg.ID, completeErr)
		}
		result.Completed++
		if action == conflict.ActionDrop {
			result.Dropped++
		}
	}

	if p.Metrics != nil {
		p.Metrics.QueueBatchesTotal.Inc()
		p.Metrics.QueueItemsProcessed.WithLabelValues("completed").Add(float64(result.Completed))
		p.Metrics.QueueItemsProcessed.WithLabelValues("failed").Add(float64(result.Failed))
		p.Metrics.QueueItemsProcessed.WithLabelValues("dropped").Add(float64(result.Dropped))
		p.Metrics.QueueBatchDuration.Observe(timer.Stop().Seconds())
	}
	if p.Bus != nil {
		p.Bus.PublishJSON(events.SubjectQueueBatch, events.QueueBatchEvent{
			Claimed:   result.Claimed,
			Completed: result.Completed,
			Failed:    result.Failed,
			Dropped:   result.Dropped,
			At:        time.Now().UTC(),
		})
	}
	return result, nil
}

// processOne drives a single pending capture through compression,
// conflict evaluation, persistence, embedding, and entity extraction. The
// returned Action is ActionDrop only when the candidate was a
// near-duplicate of an existing observation and intentionally not
// persisted.
func (p *Processor) processOne(ctx context.Context, msg *types.PendingMessage) (conflict.Action, error) {
	result, err := p.Compressor.Compress(ctx, compress.Input{
		ToolName:   msg.ToolName,
		ToolOutput: msg.ToolOutput,
		Mode:       p.Mode,
	})
	if err != nil {
		return "", err
	}

	candidate := &types.Observation{
		SessionID:     msg.SessionID,
		Type:          result.Type,
		Title:         result.Title,
		Subtitle:      result.Subtitle,
		Narrative:     result.Narrative,
		Facts:         result.Facts,
		Concepts:      result.Concepts,
		FilesRead:     result.FilesRead,
		FilesModified: result.FilesModified,
		RawToolOutput: msg.ToolOutput,
		ToolName:      msg.ToolName,
		Importance:    result.Importance,
	}

	vec, decision := p.evaluateConflict(ctx, candidate)

	var obs *types.Observation
	switch decision.Action {
	case conflict.ActionDrop:
		p.publishLifecycle(events.SubjectObservationDropped, "", msg.SessionID, decision.TargetID, "near-duplicate")
		if p.Metrics != nil {
			p.Metrics.ObservationsTotal.WithLabelValues(string(conflict.ActionDrop)).Inc()
		}
		return conflict.ActionDrop, nil
	case conflict.ActionSupersede:
		obs, err = p.Store.UpdateObservation(decision.TargetID, types.ObservationPatch{
			Title:         &candidate.Title,
			Subtitle:      &candidate.Subtitle,
			Narrative:     &candidate.Narrative,
			Type:          &candidate.Type,
			Facts:         candidate.Facts,
			Concepts:      candidate.Concepts,
			FilesRead:     candidate.FilesRead,
			FilesModified: candidate.FilesModified,
			Importance:    &candidate.Importance,
		})
		if err != nil {
			return "", err
		}
		p.publishLifecycle(events.SubjectObservationRevised, obs.ID, msg.SessionID, decision.TargetID, "")
	default:
		obs, err = p.Store.CreateObservation(candidate)
		if err != nil {
			return "", err
		}
		p.publishLifecycle(events.SubjectObservationCreated, obs.ID, msg.SessionID, "", "")
	}

	if len(vec) > 0 {
		if err := p.Store.SetEmbedding(obs.ID, vec, obs.Type); err != nil {
			logging.Get(logging.CategoryQueue).Warn("failed to store embedding for %s: %v", obs.ID, err)
		}
	}

	p.extractEntities(ctx, obs)

	if p.Metrics != nil {
		p.Metrics.ObservationsTotal.WithLabelValues(string(decision.Action)).Inc()
	}
	return decision.Action, nil
}

// evaluateConflict embeds the candidate (when embeddings are enabled) and
// scores it against recent same-typed observations. Any embedding or
// store failure degrades to ActionCreate rather than blocking the batch.
func (p *Processor) evaluateConflict(ctx context.Context, candidate *types.Observation) ([]float32, conflict.Decision) {
	if !p.Config.ConflictEnabled || p.Embedder == nil || p.Evaluator == nil {
		return nil, conflict.Decision{Action: conflict.ActionCreate}
	}

	vec, err := p.Embedder.Embed(ctx, candidate.Narrative)
	if err != nil {
		logging.Get(logging.CategoryQueue).Warn("embedding failed, skipping conflict evaluation: %v", err)
		return nil, conflict.Decision{Action: conflict.ActionCreate}
	}

	hits, err := p.Store.FindSimilar(vec, candidate.Type, p.Config.SimilarityBandLow, 5)
	if err != nil || len(hits) == 0 {
		return vec, conflict.Decision{Action: conflict.ActionCreate}
	}

	neighbours := make([]conflict.Neighbour, len(hits))
	for i, h := range hits {
		neighbours[i] = conflict.Neighbour{ID: h.ID, Similarity: h.Similarity}
	}
	return vec, p.Evaluator.Evaluate(ctx, neighbours)
}

// extractEntities mines graph edges from the persisted observation and
// stores each, logging rather than failing the batch on a store error.
func (p *Processor) extractEntities(ctx context.Context, obs *types.Observation) {
	if !p.Config.EntityExtraction || p.Extractor == nil {
		return
	}
	rels, err := p.Extractor.Extract(ctx, obs, p.Mode)
	if err != nil {
		logging.Get(logging.CategoryQueue).Warn("entity extraction failed for %s: %v", obs.ID, err)
		return
	}
	for _, rel := range rels {
		rel.ObservationID = obs.ID
		if err := p.Store.StoreLink(rel); err != nil {
			logging.Get(logging.CategoryQueue).Warn("failed to store graph link for %s: %v", obs.ID, err)
		}
	}
}

func (p *Processor) publishLifecycle(subject, obsID, sessionID, previousID, reason string) {
	if p.Bus == nil {
		return
	}
	p.Bus.PublishJSON(subject, events.ObservationEvent{
		ObservationID: obsID,
		SessionID:     sessionID,
		PreviousID:    previousID,
		Reason:        reason,
		At:            time.Now().UTC(),
	})
}
