package stream

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fpang/compliance-media-cli/internal/jsonutil"
	"github.com/rs/zerolog/log"
)

// ResolveFinal determines the final displayable result from the accumulated
// step history once a complete event arrives (or the stream ends without
// one, in which case completePayload is empty).
//
// The priority order reflects server response evolution and is fixed for
// compatibility:
//  1. the result field of the last tool step whose JSON carries a string
//     "result"
//  2. the last text step's content verbatim
//  3. the complete event's own payload
//
// Resolution never fails; a step whose JSON does not parse simply does not
// qualify for shape 1.
func ResolveFinal(steps []Step, completePayload string) string {
	var toolResult string
	var lastText string
	var haveTool, haveText bool

	for _, step := range steps {
		switch step.Kind {
		case KindTool:
			if obj, ok := jsonutil.TryParseMap(step.Content); ok {
				if r, ok := jsonutil.StringField(obj, "result"); ok {
					toolResult = r
					haveTool = true
				}
			}
		case KindText:
			lastText = step.Content
			haveText = true
		}
	}

	switch {
	case haveTool:
		return toolResult
	case haveText:
		return lastText
	default:
		log.Debug().Msg("No qualifying step; resolving from complete payload")
		return completePayload
	}
}

// ResolveDetail normalizes a stored analysis payload (the detail/history
// view) into one rendering-ready markdown string. It tries each known
// response shape in priority order:
//
//	tool_result.detailed_report > results (named sections) >
//	detailed_report > result > recommendation
//
// A shape that does not match falls through to the next; a payload that is
// not JSON at all is always treated as literal markdown. Nothing in this
// path can fail.
func ResolveDetail(blob string) string {
	obj, ok := jsonutil.TryParseMap(blob)
	if !ok {
		return blob
	}

	if tr, ok := obj["tool_result"].(map[string]any); ok {
		if report, ok := jsonutil.StringField(tr, "detailed_report"); ok {
			return report
		}
	}

	if sections, ok := obj["results"].(map[string]any); ok && len(sections) > 0 {
		return renderSections(sections)
	}

	if report, ok := jsonutil.StringField(obj, "detailed_report"); ok {
		return report
	}
	if result, ok := jsonutil.StringField(obj, "result"); ok {
		return result
	}
	if rec, ok := jsonutil.StringField(obj, "recommendation"); ok {
		return rec
	}

	return blob
}

// renderSections concatenates named analysis sections as "<key>: <value>"
// blocks, each value cleaned of markdown code-fence markers. Keys are sorted
// so the rendering is deterministic.
func renderSections(sections map[string]any) string {
	keys := make([]string, 0, len(sections))
	for k := range sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("\n\n")
		}
		var text string
		switch v := sections[k].(type) {
		case string:
			text = v
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				text = fmt.Sprintf("%v", v)
			} else {
				text = string(raw)
			}
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(jsonutil.CleanMarkdown(text))
	}
	return b.String()
}
