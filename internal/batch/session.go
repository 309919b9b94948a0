// Package batch drives compliance analysis for a set of submitted files with
// bounded concurrency. Each file gets an independent session: its own stream,
// framing buffer, step history, timer, and final result. Sessions share
// nothing but the scheduler's admission semaphore.
package batch

import (
	"context"
	"sync"

	"github.com/fpang/compliance-media-cli/internal/stream"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Submission describes one file handed to the scheduler.
type Submission struct {
	FilePath string
	IsVideo  bool
	Brand    string
	Message  string

	// VideoURL, when set, is a storage URL from a prior upload; the video is
	// checked by reference instead of re-uploading the file.
	VideoURL string

	// AnalysisModes selects which analyses the service runs on a video.
	// Empty means the service default.
	AnalysisModes []string

	// Preview is a base64 data URL thumbnail generated at load time for
	// images; it is embedded in the exported report.
	Preview string
}

// Session is the per-file processing context. All fields behind mu are
// mutated only by that session's own goroutine and the elapsed-time ticker;
// readers go through Snapshot.
type Session struct {
	mu sync.Mutex

	id         string
	submission Submission

	status         Status
	isProcessing   bool
	steps          []stream.Step
	reducerState   stream.ReducerState
	finalResult    string
	errMsg         string
	elapsedSeconds int
	cancel         context.CancelFunc
}

// Snapshot is a read-only copy of session state suitable for rendering.
type Snapshot struct {
	ID             string
	FilePath       string
	IsVideo        bool
	Brand          string
	Preview        string
	Status         Status
	IsProcessing   bool
	Steps          []stream.Step
	FinalResult    string
	ErrMsg         string
	ElapsedSeconds int
}

func newSession(sub Submission) *Session {
	return &Session{
		id:         uuid.NewString(),
		submission: sub,
		status:     StatusPending,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Cancel aborts this session's in-flight stream, if any. Sibling sessions
// are unaffected.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
}

// Snapshot copies the session state under lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := make([]stream.Step, len(s.steps))
	copy(steps, s.steps)

	return Snapshot{
		ID:             s.id,
		FilePath:       s.submission.FilePath,
		IsVideo:        s.submission.IsVideo,
		Brand:          s.submission.Brand,
		Preview:        s.submission.Preview,
		Status:         s.status,
		IsProcessing:   s.isProcessing,
		Steps:          steps,
		FinalResult:    s.finalResult,
		ErrMsg:         s.errMsg,
		ElapsedSeconds: s.elapsedSeconds,
	}
}

func (s *Session) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusProcessing
	s.isProcessing = true
	s.elapsedSeconds = 0
}

// apply folds one event into the session's step history and returns the
// current (possibly updated) last step along with whether it changed.
func (s *Session) apply(ev stream.Event) (stream.Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.steps)
	var beforeContent string
	if before > 0 {
		beforeContent = s.steps[before-1].Content
	}

	s.steps, s.reducerState = stream.Reduce(s.steps, s.reducerState, ev)

	after := len(s.steps)
	if after == 0 {
		return stream.Step{}, false
	}
	last := s.steps[after-1]
	changed := after != before || last.Content != beforeContent
	return last, changed
}

// complete resolves the final result from the accumulated steps. Events are
// applied strictly sequentially by the session goroutine, so by the time
// complete runs every reduction has already landed; no settle delay is
// needed before resolving.
func (s *Session) complete(completePayload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalResult = stream.ResolveFinal(s.steps, completePayload)
	s.status = StatusComplete
	s.isProcessing = false
}

// fail marks the session errored. The message occupies the final-result slot
// so an errored session renders in the same place as a successful one,
// never as a silent empty state.
func (s *Session) fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
	s.finalResult = "Error: " + msg
	s.status = StatusError
	s.isProcessing = false
}

// tick increments the elapsed counter while the session is processing.
// It freezes (without resetting) once processing stops.
func (s *Session) tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isProcessing {
		return false
	}
	s.elapsedSeconds++
	return true
}
