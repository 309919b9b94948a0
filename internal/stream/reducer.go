package stream

import (
	"github.com/fpang/compliance-media-cli/internal/jsonutil"
	"github.com/google/uuid"
)

// Step is a coalesced, UI-facing unit combining one or more consecutive
// same-kind events. Content accumulates by raw string concatenation; partial
// tokens grow into whole sentences and JSON documents as the stream arrives.
type Step struct {
	ID         string
	Kind       Kind
	Content    string
	TaskDetail string
}

// ReducerState is the explicit state threaded through successive Reduce
// calls: the kind of the most recently processed Text/Tool event and the id
// of the step currently being accumulated (empty when there is none).
type ReducerState struct {
	LastKind  Kind
	CurrentID string
}

// Reduce folds one event into the ordered step sequence and returns the next
// sequence and state. It is a pure transition apart from fresh id allocation:
//
//   - Complete and Thinking events never produce or mutate a step; they are
//     side-channel signals for the resolver and the UI.
//   - A Text/Tool event whose kind differs from the current step's (or
//     arriving when no step is current) starts a new step.
//   - Otherwise the event's content is appended to the current step, and the
//     task detail is re-derived from the full accumulated content.
func Reduce(steps []Step, state ReducerState, ev Event) ([]Step, ReducerState) {
	if ev.Kind != KindText && ev.Kind != KindTool {
		return steps, state
	}

	if ev.Kind != state.LastKind || state.CurrentID == "" {
		step := Step{
			ID:      uuid.NewString(),
			Kind:    ev.Kind,
			Content: ev.Content,
		}
		if ev.Kind == KindTool {
			step.TaskDetail = extractTaskDetail(step.Content)
		}
		return append(steps, step), ReducerState{LastKind: ev.Kind, CurrentID: step.ID}
	}

	// Same kind as the current step: accumulate. The current step is always
	// the last in the sequence.
	next := make([]Step, len(steps))
	copy(next, steps)
	last := &next[len(next)-1]
	last.Content += ev.Content
	if last.Kind == KindTool {
		last.TaskDetail = extractTaskDetail(last.Content)
	}
	return next, state
}

// extractTaskDetail best-effort parses a tool step's accumulated content and
// pulls out the task_detail (or camelCase taskDetail) field. Accumulation is
// usually mid-JSON, so a failed parse simply yields no detail yet; the field
// is re-derived on every accumulation because its value may only stabilize
// once enough bytes have arrived.
func extractTaskDetail(content string) string {
	obj, ok := jsonutil.TryParseMap(content)
	if !ok {
		return ""
	}
	if s, ok := jsonutil.StringField(obj, "task_detail"); ok {
		return s
	}
	if s, ok := jsonutil.StringField(obj, "taskDetail"); ok {
		return s
	}
	return ""
}
