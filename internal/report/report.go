// Package report renders completed compliance sessions as markdown and
// optionally exports them as zstd-compressed files.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fpang/compliance-media-cli/internal/batch"
	"github.com/fpang/compliance-media-cli/internal/jsonutil"
	"github.com/fpang/compliance-media-cli/internal/stream"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// Render produces a markdown report for one completed session: header, the
// preview thumbnail when one was generated, analysis steps with their task
// details, and the final result with code fences stripped for display.
func Render(snap batch.Snapshot) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Compliance Report: %s\n\n", filepath.Base(snap.FilePath)))
	if snap.Brand != "" {
		b.WriteString(fmt.Sprintf("Brand: %s\n", snap.Brand))
	}
	mediaType := "image"
	if snap.IsVideo {
		mediaType = "video"
	}
	b.WriteString(fmt.Sprintf("Media type: %s\n", mediaType))
	if snap.IsVideo && snap.ElapsedSeconds > 0 {
		b.WriteString(fmt.Sprintf("Analysis time: %ds\n", snap.ElapsedSeconds))
	}
	b.WriteString(fmt.Sprintf("Status: %s\n\n", snap.Status))

	if snap.Preview != "" {
		b.WriteString(fmt.Sprintf("![preview](%s)\n\n", snap.Preview))
	}

	if len(snap.Steps) > 0 {
		b.WriteString("## Analysis Steps\n\n")
		for i, step := range snap.Steps {
			label := "Analysis"
			if step.Kind == stream.KindTool {
				label = "Tool"
			}
			b.WriteString(fmt.Sprintf("### Step %d (%s)\n\n", i+1, label))
			if step.TaskDetail != "" {
				b.WriteString(fmt.Sprintf("_%s_\n\n", step.TaskDetail))
			}
			b.WriteString(step.Content)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("## Final Result\n\n")
	b.WriteString(jsonutil.CleanMarkdown(snap.FinalResult))
	b.WriteString("\n")

	return b.String()
}

// Export writes the rendered report to dir as a zstd-compressed markdown
// file and returns the written path.
func Export(snap batch.Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(snap.FilePath), filepath.Ext(snap.FilePath))
	name := fmt.Sprintf("%s-%s.md.zst", base, time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return "", fmt.Errorf("create zstd writer: %w", err)
	}

	if _, err := enc.Write([]byte(Render(snap))); err != nil {
		enc.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("finalize report: %w", err)
	}

	log.Info().Str("path", path).Msg("Report exported")
	return path, nil
}
