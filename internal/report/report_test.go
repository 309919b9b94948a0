package report

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/fpang/compliance-media-cli/internal/batch"
	"github.com/fpang/compliance-media-cli/internal/stream"
	"github.com/klauspost/compress/zstd"
)

func sampleSnapshot() batch.Snapshot {
	return batch.Snapshot{
		ID:       "s1",
		FilePath: "/tmp/ad.jpg",
		Brand:    "Acme",
		Preview:  "data:image/jpeg;base64,YWJj",
		Status:   batch.StatusComplete,
		Steps: []stream.Step{
			{ID: "1", Kind: stream.KindText, Content: "Scanning ad copy"},
			{ID: "2", Kind: stream.KindTool, Content: `{"task_detail":"logo check","result":"ok"}`, TaskDetail: "logo check"},
		},
		FinalResult: "```markdown\n# Verdict\nCompliant.\n```",
	}
}

func TestRender(t *testing.T) {
	got := Render(sampleSnapshot())

	for _, want := range []string{
		"# Compliance Report: ad.jpg",
		"Brand: Acme",
		"![preview](data:image/jpeg;base64,YWJj)",
		"Scanning ad copy",
		"logo check",
		"## Final Result",
		"# Verdict",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}

	if strings.Contains(got, "```") {
		t.Error("final result should have fences stripped")
	}
}

func TestExportRoundTrip(t *testing.T) {
	dir := t.TempDir()

	path, err := Export(sampleSnapshot(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(path, ".md.zst") {
		t.Errorf("path = %q", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	dec, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()

	plain, err := io.ReadAll(dec)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(plain), "# Compliance Report: ad.jpg") {
		t.Errorf("decompressed report = %q", plain)
	}
}
