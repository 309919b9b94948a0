package batch

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fpang/compliance-media-cli/internal/api"
	"github.com/fpang/compliance-media-cli/internal/stream"
)

// fakeStreamer serves canned stream bodies per file path and tracks how many
// streams are open at once.
type fakeStreamer struct {
	mu           sync.Mutex
	bodies       map[string]io.Reader
	openDelay    time.Duration
	opened       []string
	active       int
	maxActive    int
	lastVideoReq api.VideoCheckRequest
}

type trackedBody struct {
	io.Reader
	onClose func()
	once    sync.Once
}

func (b *trackedBody) Close() error {
	b.once.Do(b.onClose)
	return nil
}

func (f *fakeStreamer) open(path string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.opened = append(f.opened, path)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	body, ok := f.bodies[path]
	f.mu.Unlock()

	if f.openDelay > 0 {
		time.Sleep(f.openDelay)
	}
	if !ok {
		return nil, errors.New("no such stream")
	}
	return &trackedBody{Reader: body, onClose: func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}}, nil
}

func (f *fakeStreamer) CheckImage(_ context.Context, filePath, _ string) (io.ReadCloser, error) {
	return f.open(filePath)
}

func (f *fakeStreamer) CheckVideo(_ context.Context, req api.VideoCheckRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	f.lastVideoReq = req
	f.mu.Unlock()
	return f.open(req.FilePath)
}

// failingReader yields its prefix then fails.
type failingReader struct {
	data string
	err  error
	pos  int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, r.err
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func TestRunResolvesFinalResult(t *testing.T) {
	raw := "data:thinking:checking\n\n" +
		"data:text:Scanning ad copy\n\n" +
		"data:tool:{\"task_detail\":\"logo check\",\"result\":\"compliant\"}\n\n" +
		"data:complete:\n\n"

	streamer := &fakeStreamer{bodies: map[string]io.Reader{
		"ad.jpg": strings.NewReader(raw),
	}}

	sched := NewScheduler(streamer, 1, Hooks{})
	sched.Submit([]Submission{{
		FilePath: "ad.jpg",
		Brand:    "Acme",
		Preview:  "data:image/jpeg;base64,eHl6",
	}})
	sched.Run(context.Background())

	snaps := sched.Snapshots()
	if len(snaps) != 1 {
		t.Fatalf("expected 1 session, got %d", len(snaps))
	}
	snap := snaps[0]

	if snap.Status != StatusComplete || snap.IsProcessing {
		t.Errorf("status = %v, isProcessing = %v", snap.Status, snap.IsProcessing)
	}
	if len(snap.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d: %+v", len(snap.Steps), snap.Steps)
	}
	if snap.Steps[1].TaskDetail != "logo check" {
		t.Errorf("task detail = %q", snap.Steps[1].TaskDetail)
	}
	if snap.FinalResult != "compliant" {
		t.Errorf("final result = %q", snap.FinalResult)
	}
	if snap.Preview != "data:image/jpeg;base64,eHl6" {
		t.Errorf("snapshot preview = %q", snap.Preview)
	}
}

func TestBatchIsolationOnError(t *testing.T) {
	streamer := &fakeStreamer{bodies: map[string]io.Reader{
		"bad.jpg": &failingReader{
			data: "data:text:started\n\n",
			err:  errors.New("connection reset"),
		},
		"good.jpg": strings.NewReader(
			"data:text:all good\n\ndata:complete:\n\n"),
	}}

	sched := NewScheduler(streamer, 2, Hooks{})
	sched.Submit([]Submission{
		{FilePath: "bad.jpg"},
		{FilePath: "good.jpg"},
	})
	sched.Run(context.Background())

	snaps := sched.Snapshots()

	bad := snaps[0]
	if bad.Status != StatusError {
		t.Errorf("bad session status = %v", bad.Status)
	}
	if !strings.HasPrefix(bad.FinalResult, "Error: ") || !strings.Contains(bad.FinalResult, "connection reset") {
		t.Errorf("bad final result = %q", bad.FinalResult)
	}

	good := snaps[1]
	if good.Status != StatusComplete {
		t.Errorf("good session status = %v", good.Status)
	}
	if good.FinalResult != "all good" {
		t.Errorf("good final result = %q", good.FinalResult)
	}
	if len(good.Steps) != 1 || good.Steps[0].Content != "all good" {
		t.Errorf("good steps = %+v", good.Steps)
	}
}

func TestConcurrencyCeiling(t *testing.T) {
	bodies := map[string]io.Reader{}
	var subs []Submission
	files := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}
	for _, f := range files {
		bodies[f] = strings.NewReader("data:text:ok\n\ndata:complete:\n\n")
		subs = append(subs, Submission{FilePath: f})
	}

	streamer := &fakeStreamer{bodies: bodies, openDelay: 10 * time.Millisecond}

	sched := NewScheduler(streamer, 2, Hooks{})
	sched.Submit(subs)
	sched.Run(context.Background())

	if streamer.maxActive > 2 {
		t.Errorf("max concurrent streams = %d, want <= 2", streamer.maxActive)
	}
	for i, snap := range sched.Snapshots() {
		if snap.Status != StatusComplete && snap.Status != StatusError {
			t.Errorf("session %d not terminal: %v", i, snap.Status)
		}
	}
}

func TestSequentialAdmissionOrder(t *testing.T) {
	bodies := map[string]io.Reader{}
	var subs []Submission
	files := []string{"1.jpg", "2.jpg", "3.jpg"}
	for _, f := range files {
		bodies[f] = strings.NewReader("data:complete:done\n\n")
		subs = append(subs, Submission{FilePath: f})
	}

	streamer := &fakeStreamer{bodies: bodies}

	sched := NewScheduler(streamer, 1, Hooks{})
	sched.Submit(subs)
	sched.Run(context.Background())

	if len(streamer.opened) != 3 {
		t.Fatalf("opened %d streams", len(streamer.opened))
	}
	for i, f := range files {
		if streamer.opened[i] != f {
			t.Errorf("admission order[%d] = %q, want %q", i, streamer.opened[i], f)
		}
	}
}

func TestHooksFireInOrder(t *testing.T) {
	raw := "data:text:A\n\ndata:text:B\n\ndata:complete:\n\n"
	streamer := &fakeStreamer{bodies: map[string]io.Reader{
		"ad.jpg": strings.NewReader(raw),
	}}

	var mu sync.Mutex
	var events []stream.Kind
	var stepContents []string
	done := false

	sched := NewScheduler(streamer, 1, Hooks{
		OnEvent: func(_ string, ev stream.Event) {
			mu.Lock()
			events = append(events, ev.Kind)
			mu.Unlock()
		},
		OnStep: func(_ string, step stream.Step) {
			mu.Lock()
			stepContents = append(stepContents, step.Content)
			mu.Unlock()
		},
		OnDone: func(snap Snapshot) {
			mu.Lock()
			done = true
			mu.Unlock()
		},
	})
	sched.Submit([]Submission{{FilePath: "ad.jpg"}})
	sched.Run(context.Background())

	wantEvents := []stream.Kind{stream.KindText, stream.KindText, stream.KindComplete}
	if len(events) != len(wantEvents) {
		t.Fatalf("events = %v", events)
	}
	for i := range wantEvents {
		if events[i] != wantEvents[i] {
			t.Errorf("event[%d] = %v, want %v", i, events[i], wantEvents[i])
		}
	}

	if len(stepContents) != 2 || stepContents[0] != "A" || stepContents[1] != "AB" {
		t.Errorf("step contents = %v", stepContents)
	}
	if !done {
		t.Error("OnDone never fired")
	}
}

func TestVideoSubmissionCarriesAnalysisModes(t *testing.T) {
	streamer := &fakeStreamer{bodies: map[string]io.Reader{
		"clip.mp4": strings.NewReader("data:complete:done\n\n"),
	}}

	sched := NewScheduler(streamer, 1, Hooks{})
	sched.Submit([]Submission{{
		FilePath:      "clip.mp4",
		IsVideo:       true,
		Brand:         "Acme",
		AnalysisModes: []string{"visual", "audio"},
	}})
	sched.Run(context.Background())

	req := streamer.lastVideoReq
	if req.FilePath != "clip.mp4" || req.BrandName != "Acme" {
		t.Errorf("video request = %+v", req)
	}
	if len(req.AnalysisModes) != 2 || req.AnalysisModes[0] != "visual" || req.AnalysisModes[1] != "audio" {
		t.Errorf("analysis modes = %v, want [visual audio]", req.AnalysisModes)
	}
}

func TestStreamWithoutCompleteResolvesImplicitly(t *testing.T) {
	streamer := &fakeStreamer{bodies: map[string]io.Reader{
		"ad.jpg": strings.NewReader("data:text:the verdict\n\n"),
	}}

	sched := NewScheduler(streamer, 1, Hooks{})
	sched.Submit([]Submission{{FilePath: "ad.jpg"}})
	sched.Run(context.Background())

	snap := sched.Snapshots()[0]
	if snap.Status != StatusComplete {
		t.Errorf("status = %v", snap.Status)
	}
	if snap.FinalResult != "the verdict" {
		t.Errorf("final result = %q", snap.FinalResult)
	}
}

func TestPlainFormatStream(t *testing.T) {
	raw := `{"type":"text","content":"batch progress"}` + "\n" +
		`{"type":"tool","content":"{\"result\":\"flagged\"}"}` + "\n" +
		`{"type":"complete","content":""}` + "\n"

	streamer := &fakeStreamer{bodies: map[string]io.Reader{
		"batch.jpg": strings.NewReader(raw),
	}}

	sched := NewScheduler(streamer, 1, Hooks{})
	sched.Format = stream.FormatPlain
	sched.Submit([]Submission{{FilePath: "batch.jpg"}})
	sched.Run(context.Background())

	snap := sched.Snapshots()[0]
	if snap.Status != StatusComplete {
		t.Fatalf("status = %v", snap.Status)
	}
	if snap.FinalResult != "flagged" {
		t.Errorf("final result = %q", snap.FinalResult)
	}
	if len(snap.Steps) != 2 {
		t.Errorf("steps = %+v", snap.Steps)
	}
}

func TestOpenErrorMarksSessionErrored(t *testing.T) {
	streamer := &fakeStreamer{bodies: map[string]io.Reader{}}

	sched := NewScheduler(streamer, 1, Hooks{})
	sched.Submit([]Submission{{FilePath: "missing.jpg"}})
	sched.Run(context.Background())

	snap := sched.Snapshots()[0]
	if snap.Status != StatusError || snap.IsProcessing {
		t.Errorf("snapshot = %+v", snap)
	}
	if !strings.HasPrefix(snap.FinalResult, "Error: ") {
		t.Errorf("final result = %q", snap.FinalResult)
	}
}
