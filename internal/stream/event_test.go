package stream

import "testing"

func TestDecodeSSE(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   Event
		wantOK bool
	}{
		{"text event", "data:text:Hello world", Event{KindText, "Hello world"}, true},
		{"tool event", `data:tool:{"task_detail":"scanning"}`, Event{KindTool, `{"task_detail":"scanning"}`}, true},
		{"thinking event", "data:thinking:hmm", Event{KindThinking, "hmm"}, true},
		{"complete event", "data:complete:", Event{KindComplete, ""}, true},
		{"whitespace after prefix", "data: text:spaced", Event{KindText, "spaced"}, true},
		{"trailing content space kept", "data:text:Hello ", Event{KindText, "Hello "}, true},
		{"leading record whitespace", "\ndata:text:x", Event{KindText, "x"}, true},
		{"content with colons", "data:text:a:b:c", Event{KindText, "a:b:c"}, true},
		{"unknown kind", "data:keepalive:ping", Event{}, false},
		{"no colon after kind", "data:text", Event{}, false},
		{"missing data prefix", "text:hello", Event{}, false},
		{"empty record", "", Event{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeSSE(tt.record)
			if ok != tt.wantOK {
				t.Fatalf("DecodeSSE(%q) ok = %v, want %v", tt.record, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("DecodeSSE(%q) = %+v, want %+v", tt.record, got, tt.want)
			}
		})
	}
}

func TestDecodePlainJSON(t *testing.T) {
	ev, ok := DecodePlain(`{"type":"tool","content":"{\"result\":\"ok\"}"}`)
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.Kind != KindTool || ev.Content != `{"result":"ok"}` {
		t.Errorf("got %+v", ev)
	}
}

func TestDecodePlainRawTextFallback(t *testing.T) {
	tests := []struct {
		name   string
		record string
	}{
		{"prose", "just some progress text"},
		{"json array", `[1,2,3]`},
		{"json primitive", `"hello"`},
		{"object missing content", `{"type":"text"}`},
		{"unknown type", `{"type":"mystery","content":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := DecodePlain(tt.record)
			if !ok {
				t.Fatal("expected fallback text event")
			}
			if ev.Kind != KindText || ev.Content != tt.record {
				t.Errorf("got %+v, want verbatim text event", ev)
			}
		})
	}
}

func TestDecodePlainWhitespaceOnly(t *testing.T) {
	if _, ok := DecodePlain("   \n"); ok {
		t.Error("whitespace-only record should produce no event")
	}
}
