package store

import (
	"strings"
	"testing"
)

func streamStore(t *testing.T) *Store {
	t.Helper()
	s, _ := newTestStore(t)
	connect(t, s, "S1")
	apply(t, s, `{"type":"model_stream_chunk","sessionId":"S1","chunk":{"kind":"turn_start","turnId":"T1"}}`)
	return s
}

func chunk(t *testing.T, s *Store, body string) {
	t.Helper()
	apply(t, s, `{"type":"model_stream_chunk","sessionId":"S1","chunk":`+body+`}`)
}

func feedOfKind(s *Store, kind FeedKind) []FeedItem {
	var out []FeedItem
	for _, it := range s.Snapshot().Feed {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

func TestAssistantDeltasUpdateOneItemInPlace(t *testing.T) {
	s := streamStore(t)
	chunk(t, s, `{"kind":"assistant_delta","turnId":"T1","text":"one "}`)
	chunk(t, s, `{"kind":"assistant_delta","turnId":"T1","text":"two "}`)
	chunk(t, s, `{"kind":"assistant_delta","turnId":"T1","text":"three"}`)

	msgs := feedOfKind(s, FeedMessage)
	if len(msgs) != 1 {
		t.Fatalf("message items = %d, want 1", len(msgs))
	}
	if msgs[0].Role != RoleAssistant || msgs[0].Text != "one two three" {
		t.Errorf("item = %+v", msgs[0])
	}
}

func TestInterleavedTurnsGetSeparateItems(t *testing.T) {
	s := streamStore(t)
	chunk(t, s, `{"kind":"assistant_delta","turnId":"T1","text":"first"}`)
	chunk(t, s, `{"kind":"assistant_delta","turnId":"T2","text":"second"}`)
	chunk(t, s, `{"kind":"assistant_delta","turnId":"T1","text":" turn"}`)

	msgs := feedOfKind(s, FeedMessage)
	if len(msgs) != 2 {
		t.Fatalf("message items = %d, want 2", len(msgs))
	}
	if msgs[0].Text != "first turn" || msgs[1].Text != "second" {
		t.Errorf("texts = %q, %q", msgs[0].Text, msgs[1].Text)
	}
}

func TestParallelReasoningStreams(t *testing.T) {
	s := streamStore(t)
	chunk(t, s, `{"kind":"reasoning_delta","turnId":"T1","itemId":"i1","text":"alpha"}`)
	chunk(t, s, `{"kind":"reasoning_delta","turnId":"T1","itemId":"i2","text":"beta"}`)
	chunk(t, s, `{"kind":"reasoning_delta","turnId":"T1","itemId":"i1","text":" more"}`)

	items := feedOfKind(s, FeedReasoning)
	if len(items) != 2 {
		t.Fatalf("reasoning items = %d, want 2", len(items))
	}
	if items[0].Text != "alpha more" || items[1].Text != "beta" {
		t.Errorf("texts = %q, %q", items[0].Text, items[1].Text)
	}
}

func TestReasoningBoundariesEmitSystemLines(t *testing.T) {
	s := streamStore(t)
	chunk(t, s, `{"kind":"reasoning_start","turnId":"T1","itemId":"i1"}`)
	chunk(t, s, `{"kind":"reasoning_end","turnId":"T1","itemId":"i1"}`)

	var lines []string
	for _, it := range feedOfKind(s, FeedSystem) {
		lines = append(lines, it.Line)
	}
	joined := strings.Join(lines, "|")
	if !strings.Contains(joined, "reasoning started") || !strings.Contains(joined, "reasoning finished") {
		t.Errorf("system lines = %v", lines)
	}
	if len(feedOfKind(s, FeedReasoning)) != 0 {
		t.Error("boundary chunks created reasoning items")
	}
}

func TestToolInputLifecycle(t *testing.T) {
	s := streamStore(t)
	chunk(t, s, `{"kind":"tool_input_start","turnId":"T1","callId":"c1","name":"write"}`)
	chunk(t, s, `{"kind":"tool_input_delta","turnId":"T1","callId":"c1","text":"{\"path\":"}`)
	chunk(t, s, `{"kind":"tool_input_delta","turnId":"T1","callId":"c1","text":"\"b.go\"}"}`)
	chunk(t, s, `{"kind":"tool_input_end","turnId":"T1","callId":"c1"}`)
	chunk(t, s, `{"kind":"tool_result","turnId":"T1","callId":"c1","result":{"bytes":42}}`)

	tools := feedOfKind(s, FeedTool)
	if len(tools) != 1 {
		t.Fatalf("tool items = %d, want 1", len(tools))
	}
	got := tools[0]
	if got.ToolName != "write" || got.ToolStatus != ToolDone {
		t.Errorf("item = %+v", got)
	}
	if got.ToolArgs["path"] != "b.go" {
		t.Errorf("args = %+v", got.ToolArgs)
	}
	if got.ToolResult["bytes"] != float64(42) {
		t.Errorf("result = %+v", got.ToolResult)
	}
}

func TestToolInputMalformedKeptOpaque(t *testing.T) {
	s := streamStore(t)
	chunk(t, s, `{"kind":"tool_input_start","turnId":"T1","callId":"c1","name":"bash"}`)
	chunk(t, s, `{"kind":"tool_input_delta","turnId":"T1","callId":"c1","text":"not json at all"}`)
	chunk(t, s, `{"kind":"tool_input_end","turnId":"T1","callId":"c1"}`)

	tools := feedOfKind(s, FeedTool)
	if len(tools) != 1 {
		t.Fatalf("tool items = %d, want 1", len(tools))
	}
	if tools[0].ToolArgs["input"] != "not json at all" {
		t.Errorf("args = %+v", tools[0].ToolArgs)
	}
}

func TestToolCallWithoutInputStream(t *testing.T) {
	s := streamStore(t)
	chunk(t, s, `{"kind":"tool_call","turnId":"T1","callId":"c1","name":"grep","args":{"pattern":"x"}}`)
	chunk(t, s, `{"kind":"tool_error","turnId":"T1","callId":"c1","error":"timeout"}`)

	tools := feedOfKind(s, FeedTool)
	if len(tools) != 1 {
		t.Fatalf("tool items = %d, want 1", len(tools))
	}
	got := tools[0]
	if got.ToolName != "grep" || got.ToolStatus != ToolDone {
		t.Errorf("item = %+v", got)
	}
	if got.ToolResult["error"] != "timeout" {
		t.Errorf("result = %+v", got.ToolResult)
	}
}

func TestToolOutputDenied(t *testing.T) {
	s := streamStore(t)
	chunk(t, s, `{"kind":"tool_call","turnId":"T1","callId":"c1","name":"bash","args":{"cmd":"rm"}}`)
	chunk(t, s, `{"kind":"tool_output_denied","turnId":"T1","callId":"c1","reason":"not approved"}`)

	tools := feedOfKind(s, FeedTool)
	if len(tools) != 1 {
		t.Fatalf("tool items = %d, want 1", len(tools))
	}
	res := tools[0].ToolResult
	if res["denied"] != true || res["reason"] != "not approved" {
		t.Errorf("result = %+v", res)
	}
}

func TestDuplicateToolResultDoesNotMutateDoneItem(t *testing.T) {
	s := streamStore(t)
	chunk(t, s, `{"kind":"tool_call","turnId":"T1","callId":"c1","name":"read","args":{"path":"a.ts"}}`)
	chunk(t, s, `{"kind":"tool_result","turnId":"T1","callId":"c1","result":{"chars":10}}`)
	chunk(t, s, `{"kind":"tool_result","turnId":"T1","callId":"c1","result":{"chars":999}}`)

	tools := feedOfKind(s, FeedTool)
	if len(tools) != 2 {
		t.Fatalf("tool items = %d, want original plus orphan duplicate", len(tools))
	}
	// The completed item keeps its first result.
	if tools[0].ToolResult["chars"] != float64(10) {
		t.Errorf("completed item result = %+v, want chars=10", tools[0].ToolResult)
	}
	if tools[1].ToolStatus != ToolDone || tools[1].ToolResult["chars"] != float64(999) {
		t.Errorf("duplicate item = %+v", tools[1])
	}

	// Same for a late error after completion.
	chunk(t, s, `{"kind":"tool_error","turnId":"T1","callId":"c1","error":"too late"}`)
	tools = feedOfKind(s, FeedTool)
	if tools[0].ToolResult["chars"] != float64(10) {
		t.Errorf("completed item mutated by late error: %+v", tools[0].ToolResult)
	}
}

func TestOrphanToolResultAppendsDoneItem(t *testing.T) {
	s := streamStore(t)
	chunk(t, s, `{"kind":"tool_result","turnId":"T1","callId":"cX","name":"read","result":{"ok":true}}`)

	tools := feedOfKind(s, FeedTool)
	if len(tools) != 1 || tools[0].ToolStatus != ToolDone {
		t.Fatalf("tool items = %+v", tools)
	}
}

func TestUsagePublishedOnStepFinish(t *testing.T) {
	s := streamStore(t)
	chunk(t, s, `{"kind":"step_finish","turnId":"T1","usage":{"promptTokens":7,"completionTokens":3,"totalTokens":10}}`)

	u := s.Snapshot().Usage
	if u == nil || u.Input != 7 || u.Output != 3 || u.Total != 10 {
		t.Errorf("Usage = %+v", u)
	}
}

func TestUnknownChunkKindPreviewTruncated(t *testing.T) {
	s := streamStore(t)
	long := strings.Repeat("x", 300)
	chunk(t, s, `{"kind":"annotation","turnId":"T1","text":"`+long+`"}`)

	sys := feedOfKind(s, FeedSystem)
	last := sys[len(sys)-1]
	if !strings.HasPrefix(last.Line, "annotation: ") {
		t.Fatalf("line = %q", last.Line)
	}
	if len(last.Line) > len("annotation: ")+systemPreviewLen+3 {
		t.Errorf("preview not truncated: %d chars", len(last.Line))
	}
}

func TestLegacyMarkersSuppressedWhileTurnActive(t *testing.T) {
	s := streamStore(t)
	chunk(t, s, `{"kind":"tool_call","turnId":"T1","callId":"c1","name":"read","args":{"path":"a.ts"}}`)

	// The legacy mirror of the same call arrives as a log line and
	// must not create a second item.
	apply(t, s, `{"type":"log","sessionId":"S1","line":"tool> read {\"path\":\"a.ts\"}"}`)

	if tools := feedOfKind(s, FeedTool); len(tools) != 1 {
		t.Errorf("tool items = %d, want 1", len(tools))
	}

	// After the turn ends markers are handled again.
	chunk(t, s, `{"kind":"turn_finish","turnId":"T1"}`)
	apply(t, s, `{"type":"log","sessionId":"S1","line":"tool> read {\"path\":\"b.ts\"}"}`)
	if tools := feedOfKind(s, FeedTool); len(tools) != 2 {
		t.Errorf("tool items = %d after turn end, want 2", len(tools))
	}
}

func TestTurnStartResetsAccumulators(t *testing.T) {
	s := streamStore(t)
	chunk(t, s, `{"kind":"assistant_delta","turnId":"T1","text":"old"}`)
	chunk(t, s, `{"kind":"turn_start","turnId":"T2"}`)
	chunk(t, s, `{"kind":"assistant_delta","turnId":"T2","text":"new"}`)

	msgs := feedOfKind(s, FeedMessage)
	if len(msgs) != 2 {
		t.Fatalf("message items = %d, want 2", len(msgs))
	}
	if msgs[1].Text != "new" {
		t.Errorf("second turn text = %q", msgs[1].Text)
	}

	// Suppression memory follows the newest turn only.
	before := len(s.Snapshot().Feed)
	apply(t, s, `{"type":"assistant_message","sessionId":"S1","turnId":"T1","text":"old"}`)
	if got := len(s.Snapshot().Feed); got != before+1 {
		t.Errorf("stale turn text suppressed, feed = %d want %d", got, before+1)
	}
}
