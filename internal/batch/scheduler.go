package batch

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fpang/compliance-media-cli/internal/api"
	"github.com/fpang/compliance-media-cli/internal/stream"
	"github.com/rs/zerolog/log"
)

// Streamer opens analysis streams. *api.Client satisfies it; tests substitute
// an httptest-backed or in-memory implementation.
type Streamer interface {
	CheckImage(ctx context.Context, filePath, message string) (io.ReadCloser, error)
	CheckVideo(ctx context.Context, req api.VideoCheckRequest) (io.ReadCloser, error)
}

// Hooks are optional callbacks surfacing live progress to the UI layer.
// They are invoked from session goroutines; implementations must be safe for
// concurrent use across sessions (events within one session arrive in order).
type Hooks struct {
	OnEvent func(sessionID string, ev stream.Event)
	OnStep  func(sessionID string, step stream.Step)
	OnDone  func(snap Snapshot)
}

// Scheduler admits sessions in submission order through a fixed-size
// semaphore and runs each one's stream in isolation. Completion order is
// whatever the streams naturally produce.
type Scheduler struct {
	client   Streamer
	limit    int
	hooks    Hooks
	sessions []*Session

	// Format selects the wire convention of the streams this scheduler
	// opens. The zero value is the SSE form used by the check endpoints;
	// the internal batch variant sets FormatPlain.
	Format stream.Format
}

// NewScheduler creates a scheduler with the given concurrency limit.
// A limit of 1 reproduces strictly sequential one-at-a-time processing.
func NewScheduler(client Streamer, limit int, hooks Hooks) *Scheduler {
	if limit < 1 {
		limit = 1
	}
	return &Scheduler{client: client, limit: limit, hooks: hooks}
}

// Submit accepts files into the batch and returns their sessions in order.
func (s *Scheduler) Submit(subs []Submission) []*Session {
	for _, sub := range subs {
		s.sessions = append(s.sessions, newSession(sub))
	}
	return s.sessions
}

// Snapshots returns a point-in-time view of every session.
func (s *Scheduler) Snapshots() []Snapshot {
	snaps := make([]Snapshot, len(s.sessions))
	for i, sess := range s.sessions {
		snaps[i] = sess.Snapshot()
	}
	return snaps
}

// Run processes all submitted sessions and blocks until each reaches a
// terminal state. Admission is FIFO; the semaphore is acquired here, in the
// submission loop, so admission order never depends on goroutine scheduling.
// Cancelling ctx aborts in-flight streams and marks unstarted sessions
// errored.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.limit)

	for _, sess := range s.sessions {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			sess.fail(ctx.Err().Error())
			if s.hooks.OnDone != nil {
				s.hooks.OnDone(sess.Snapshot())
			}
			continue
		}

		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runSession(ctx, sess)
		}(sess)
	}

	wg.Wait()
}

// runSession drives one file: open the stream, frame it, decode each record,
// fold events into steps, and resolve the final result on completion. Any
// error is terminal for this session only; siblings are unaffected.
func (s *Scheduler) runSession(ctx context.Context, sess *Session) {
	sub := sess.submission
	sess.begin()

	// Each session gets its own abort handle so one stream can be cancelled
	// without touching its siblings; batch-wide cancellation still flows in
	// through the parent context.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sess.setCancel(cancel)

	log.Info().
		Str("session", sess.ID()).
		Str("file", filepath.Base(sub.FilePath)).
		Bool("is_video", sub.IsVideo).
		Msg("Session started")

	if sub.IsVideo {
		stop := s.startTimer(sess)
		defer stop()
	}

	body, err := s.openStream(ctx, sub)
	if err != nil {
		log.Error().Err(err).Str("session", sess.ID()).Msg("Failed to open analysis stream")
		s.finish(sess, err.Error())
		return
	}
	defer body.Close()

	framer := stream.NewFramer(body, s.Format.Delimiter())
	var completePayload string
	completed := false

	for {
		record, err := framer.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error().Err(err).Str("session", sess.ID()).Msg("Stream read failed")
			s.finish(sess, err.Error())
			return
		}

		ev, ok := s.Format.Decode(record)
		if !ok {
			continue
		}
		if s.hooks.OnEvent != nil {
			s.hooks.OnEvent(sess.ID(), ev)
		}

		if ev.Kind == stream.KindComplete {
			completePayload = ev.Content
			completed = true
			// The server closes right after the complete record; stop
			// reading rather than waiting out the connection teardown.
			break
		}

		if step, changed := sess.apply(ev); changed && s.hooks.OnStep != nil {
			s.hooks.OnStep(sess.ID(), step)
		}
	}

	if !completed {
		log.Debug().Str("session", sess.ID()).Msg("Stream ended without complete event; treating as implicit completion")
	}

	sess.complete(completePayload)
	log.Info().Str("session", sess.ID()).Msg("Session complete")

	if s.hooks.OnDone != nil {
		s.hooks.OnDone(sess.Snapshot())
	}
}

func (s *Scheduler) openStream(ctx context.Context, sub Submission) (io.ReadCloser, error) {
	if !sub.IsVideo {
		return s.client.CheckImage(ctx, sub.FilePath, sub.Message)
	}
	return s.client.CheckVideo(ctx, api.VideoCheckRequest{
		FilePath:      sub.FilePath,
		VideoURL:      sub.VideoURL,
		Message:       sub.Message,
		AnalysisModes: sub.AnalysisModes,
		BrandName:     sub.Brand,
	})
}

// finish marks a session errored and fires the done hook.
func (s *Scheduler) finish(sess *Session, errMsg string) {
	sess.fail(errMsg)
	if s.hooks.OnDone != nil {
		s.hooks.OnDone(sess.Snapshot())
	}
}

// startTimer runs the once-per-second elapsed counter for a video session.
// The counter stops advancing the moment processing clears; the returned
// stop function also ends the goroutine when the session goroutine returns.
func (s *Scheduler) startTimer(sess *Session) (stop func()) {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !sess.tick() {
					return
				}
			}
		}
	}()

	return func() { close(done) }
}
