package host

import (
	"context"
	"time"

	"github.com/niklasschaeffer/open-mem/internal/events"
	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// ToolExecution is what the harness reports after a tool call completes.
type ToolExecution struct {
	SessionID   string
	ProjectPath string
	ToolName    string
	Output      string
	CallID      string
}

// OnToolExecute redacts the tool output and durably enqueues it for the
// queue processor, mirroring §1's "capture first, compress later"
// pipeline. A suppressed (too-short-after-redaction) capture is dropped
// silently — it was never worth compressing.
func (e *Engine) OnToolExecute(exec ToolExecution) (*types.PendingMessage, error) {
	if _, err := e.Store.GetOrCreateSession(exec.SessionID, exec.ProjectPath); err != nil {
		return nil, err
	}

	output := exec.Output
	if e.Redactor != nil {
		redacted, suppress := e.Redactor.Redact(output)
		if suppress {
			logging.Get(logging.CategoryHost).Debug("suppressing capture for %s: below minimum length after redaction", exec.ToolName)
			return nil, nil
		}
		output = redacted
	}

	msg, err := e.Store.Enqueue(exec.SessionID, exec.ToolName, output, exec.CallID)
	if err != nil {
		return nil, err
	}
	if e.Scheduler != nil {
		e.Scheduler.Trigger(context.Background())
	}
	return msg, nil
}

// ChatMessage is one turn of the conversation the harness is conducting,
// offered to the engine in case a mode's vocabulary wants to react to it.
// Chat text itself is never captured as an observation — only tool output
// is, per the capture pipeline's scope.
type ChatMessage struct {
	SessionID string
	Role      string
	Content   string
}

// OnChatMessage is a no-op hook point reserved for future mode-driven
// chat-triggered capture; it exists so the harness has one stable
// interface to call regardless of whether a mode currently acts on it.
func (e *Engine) OnChatMessage(msg ChatMessage) error {
	return nil
}

// OnEvent republishes a harness-originated event onto the embedded bus
// under a harness.<name> subject, letting dashboard listeners observe
// host-side activity alongside observation lifecycle events.
func (e *Engine) OnEvent(name string, payload interface{}) {
	if e.Bus == nil {
		return
	}
	e.Bus.PublishJSON("harness."+name, payload)
}

// SessionStartTransform is applied when a session begins: it resolves the
// canonical project path and returns the session record the harness should
// treat as authoritative, creating one if none is active yet.
func (e *Engine) OnSessionStartTransform(sessionID, rawProjectPath string) (*types.Session, error) {
	projectPath := e.ProjectPath(rawProjectPath)
	return e.Store.GetOrCreateSession(sessionID, projectPath)
}

// OnSessionCompacting is called before the harness compacts its own
// context window: it marks the session idle and, when the session has
// current observations, builds a summary from their fields (no compressor
// call) and persists it so the compacted history isn't lost to future
// retrieval.
func (e *Engine) OnSessionCompacting(sessionID string) (*types.SessionSummary, error) {
	if err := e.Store.MarkSessionIdle(sessionID); err != nil {
		return nil, err
	}

	sess, err := e.Store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	observations, err := e.Store.ListByProject(sess.ProjectPath, types.ListOptions{SessionID: sessionID, State: types.StateCurrent, Limit: 200})
	if err != nil || len(observations) == 0 {
		return nil, err
	}

	summary := summarizeObservations(sessionID, observations)
	created, err := e.Store.CreateSessionSummary(summary)
	if err != nil {
		return nil, err
	}
	if e.Bus != nil {
		e.Bus.PublishJSON(events.SubjectQueueBatch, map[string]interface{}{
			"event":     "session.summarized",
			"sessionId": sessionID,
			"at":        time.Now().UTC(),
		})
	}
	return created, nil
}

// summarizeObservations folds a session's observations into a plain-text
// recap without calling out to a compressor, keeping session-end summary
// generation available even when every AI provider in the chain is down.
func summarizeObservations(sessionID string, obs []*types.Observation) *types.SessionSummary {
	var decisions, files, concepts []string
	seenFiles := map[string]bool{}
	seenConcepts := map[string]bool{}

	for _, o := range obs {
		if o.Type == types.ObservationDecision {
			decisions = append(decisions, o.Title)
		}
		for _, f := range o.FilesModified {
			if !seenFiles[f] {
				seenFiles[f] = true
				files = append(files, f)
			}
		}
		for _, c := range o.Concepts {
			if !seenConcepts[c] {
				seenConcepts[c] = true
				concepts = append(concepts, c)
			}
		}
	}

	return &types.SessionSummary{
		SessionID:     sessionID,
		Summary:       titlesOf(obs),
		KeyDecisions:  decisions,
		FilesModified: files,
		Concepts:      concepts,
	}
}

func titlesOf(obs []*types.Observation) string {
	var sb []byte
	for i, o := range obs {
		if i > 0 {
			sb = append(sb, "; "...)
		}
		sb = append(sb, o.Title...)
	}
	return string(sb)
}
