package store

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mweinbach/cowork/protocol"
)

// systemPreviewLen caps the length of system lines derived from
// non-text chunk payloads.
const systemPreviewLen = 160

// feedMutator is the narrow surface the stream lifecycle needs from
// the store. Every method assumes the store mutex is already held.
type feedMutator interface {
	appendFeedItem(it FeedItem) int64
	updateFeedItem(id int64, fn func(*FeedItem))
	appendSystemLine(line string)
	clearPendingTools()
	setUsage(u protocol.UsageSnapshot)
}

// streamLifecycle accumulates incremental model output into feed
// items updated in place. Accumulators are keyed per turn so chunks
// from interleaved turns never bleed into each other. It also retains
// enough of the last streamed turn to recognize consolidated events
// that duplicate what streaming already rendered.
type streamLifecycle struct {
	feed feedMutator
	log  *slog.Logger

	active bool
	turnID string

	assistantText map[string]*strings.Builder // turnID
	assistantItem map[string]int64
	reasoningText map[string]*strings.Builder // turnID + "/" + itemID
	reasoningItem map[string]int64
	toolInput     map[string]*strings.Builder // turnID + "/" + callKey
	toolItem      map[string]int64

	// Suppression memory. Survives accumulator resets on busy
	// transitions so late consolidated events are still recognized.
	lastAssistantTurn string
	lastAssistantText string
	reasoningTurns    map[string]struct{}
	lastReasoningTurn string
}

func newStreamLifecycle(feed feedMutator, log *slog.Logger) *streamLifecycle {
	l := &streamLifecycle{feed: feed, log: log}
	l.fullReset()
	return l
}

// fullReset clears accumulators and suppression memory. Used on
// handshake, reset and at the start of every new turn.
func (l *streamLifecycle) fullReset() {
	l.active = false
	l.turnID = ""
	l.resetAccumulators()
	l.lastAssistantTurn = ""
	l.lastAssistantText = ""
	l.reasoningTurns = make(map[string]struct{})
	l.lastReasoningTurn = ""
}

// resetAccumulators drops in-flight buffers but keeps suppression
// memory intact.
func (l *streamLifecycle) resetAccumulators() {
	l.assistantText = make(map[string]*strings.Builder)
	l.assistantItem = make(map[string]int64)
	l.reasoningText = make(map[string]*strings.Builder)
	l.reasoningItem = make(map[string]int64)
	l.toolInput = make(map[string]*strings.Builder)
	l.toolItem = make(map[string]int64)
}

// setBusy tracks server busy transitions. Entering busy only clears
// turn bookkeeping; leaving busy drops accumulators since the turn is
// over, while suppression memory stays for trailing consolidated
// events.
func (l *streamLifecycle) setBusy(busy bool) {
	if busy {
		l.active = false
		l.turnID = ""
		return
	}
	l.active = false
	l.turnID = ""
	l.resetAccumulators()
}

func (l *streamLifecycle) isTurnActive() bool {
	return l.active
}

// isDuplicateAssistant reports whether a consolidated assistant
// message repeats the text already streamed for its turn.
func (l *streamLifecycle) isDuplicateAssistant(turnID, text string) bool {
	if l.lastAssistantTurn == "" {
		return false
	}
	if turnID != "" && turnID != l.lastAssistantTurn {
		return false
	}
	return strings.TrimSpace(text) == strings.TrimSpace(l.lastAssistantText)
}

// isDuplicateReasoning reports whether reasoning for the given turn
// was already streamed.
func (l *streamLifecycle) isDuplicateReasoning(turnID string) bool {
	if turnID == "" {
		return l.lastReasoningTurn != ""
	}
	_, ok := l.reasoningTurns[turnID]
	return ok
}

func (l *streamLifecycle) turnKey(c *protocol.StreamChunk) string {
	if c.TurnID != "" {
		return c.TurnID
	}
	return l.turnID
}

func (l *streamLifecycle) toolKey(c *protocol.StreamChunk) string {
	call := c.CallID
	if call == "" {
		call = c.Name
	}
	return l.turnKey(c) + "/" + call
}

// handleChunk applies one structured stream chunk. Callers hold the
// store mutex.
func (l *streamLifecycle) handleChunk(c *protocol.StreamChunk) {
	switch c.Kind {
	case protocol.ChunkTurnStart:
		l.fullReset()
		l.feed.clearPendingTools()
		l.active = true
		l.turnID = c.TurnID

	case protocol.ChunkTurnFinish:
		l.publishUsage(c.Usage)
		l.active = false

	case protocol.ChunkStepStart, protocol.ChunkAssistantTextStart, protocol.ChunkAssistantTextEnd:
		// State only.

	case protocol.ChunkStepFinish:
		l.publishUsage(c.Usage)

	case protocol.ChunkAssistantDelta:
		l.appendAssistantDelta(c)

	case protocol.ChunkReasoningStart:
		l.feed.appendSystemLine("reasoning started")

	case protocol.ChunkReasoningEnd:
		l.feed.appendSystemLine("reasoning finished")

	case protocol.ChunkReasoningDelta:
		l.appendReasoningDelta(c)

	case protocol.ChunkToolInputStart:
		l.openToolItem(c)

	case protocol.ChunkToolInputDelta:
		l.appendToolInputDelta(c)

	case protocol.ChunkToolInputEnd:
		l.finishToolInput(c)

	case protocol.ChunkToolCall:
		l.recordToolCall(c)

	case protocol.ChunkToolResult:
		l.completeTool(c, decodeToolPayload(c.Result, "output"))

	case protocol.ChunkToolError:
		l.completeTool(c, map[string]any{"error": c.Error})

	case protocol.ChunkToolOutputDenied:
		res := map[string]any{"denied": true}
		if c.Reason != "" {
			res["reason"] = c.Reason
		}
		l.completeTool(c, res)

	case protocol.ChunkToolApprovalRequest:
		name := c.Name
		if name == "" {
			name = "tool"
		}
		l.feed.appendSystemLine("approval requested for " + name)

	default:
		// source, file and anything future get a short preview line.
		l.log.Debug("previewing chunk", "kind", c.Kind)
		l.feed.appendSystemLine(previewLine(string(c.Kind), c))
	}
}

func (l *streamLifecycle) appendAssistantDelta(c *protocol.StreamChunk) {
	key := l.turnKey(c)
	b, ok := l.assistantText[key]
	if !ok {
		b = &strings.Builder{}
		l.assistantText[key] = b
		l.assistantItem[key] = l.feed.appendFeedItem(FeedItem{
			Kind: FeedMessage,
			Role: RoleAssistant,
		})
	}
	b.WriteString(c.Text)
	text := b.String()
	l.feed.updateFeedItem(l.assistantItem[key], func(it *FeedItem) {
		it.Text = text
	})
	l.lastAssistantTurn = key
	l.lastAssistantText = text
}

func (l *streamLifecycle) appendReasoningDelta(c *protocol.StreamChunk) {
	turn := l.turnKey(c)
	key := turn + "/" + c.ItemID
	b, ok := l.reasoningText[key]
	if !ok {
		b = &strings.Builder{}
		l.reasoningText[key] = b
		l.reasoningItem[key] = l.feed.appendFeedItem(FeedItem{
			Kind:          FeedReasoning,
			ReasoningKind: "reasoning",
		})
	}
	b.WriteString(c.Text)
	text := b.String()
	l.feed.updateFeedItem(l.reasoningItem[key], func(it *FeedItem) {
		it.Text = text
	})
	l.reasoningTurns[turn] = struct{}{}
	l.lastReasoningTurn = turn
}

func (l *streamLifecycle) openToolItem(c *protocol.StreamChunk) {
	key := l.toolKey(c)
	if _, ok := l.toolItem[key]; ok {
		return
	}
	l.toolItem[key] = l.feed.appendFeedItem(FeedItem{
		Kind:       FeedTool,
		ToolName:   c.Name,
		ToolStatus: ToolRunning,
	})
}

func (l *streamLifecycle) appendToolInputDelta(c *protocol.StreamChunk) {
	key := l.toolKey(c)
	b, ok := l.toolInput[key]
	if !ok {
		b = &strings.Builder{}
		l.toolInput[key] = b
	}
	b.WriteString(c.Text)
	args := parseToolInput(b.String())

	id, ok := l.toolItem[key]
	if !ok {
		id = l.feed.appendFeedItem(FeedItem{
			Kind:       FeedTool,
			ToolName:   c.Name,
			ToolStatus: ToolRunning,
		})
		l.toolItem[key] = id
	}
	l.feed.updateFeedItem(id, func(it *FeedItem) {
		it.ToolArgs = args
	})
}

func (l *streamLifecycle) finishToolInput(c *protocol.StreamChunk) {
	key := l.toolKey(c)
	args := decodeToolPayload(c.Args, "input")
	if args == nil {
		if b, ok := l.toolInput[key]; ok && b.Len() > 0 {
			args = parseToolInput(b.String())
		}
	}
	id, ok := l.toolItem[key]
	if !ok {
		id = l.feed.appendFeedItem(FeedItem{
			Kind:       FeedTool,
			ToolName:   c.Name,
			ToolStatus: ToolRunning,
		})
		l.toolItem[key] = id
	}
	l.feed.updateFeedItem(id, func(it *FeedItem) {
		if c.Name != "" {
			it.ToolName = c.Name
		}
		if args != nil {
			it.ToolArgs = args
		}
	})
}

func (l *streamLifecycle) recordToolCall(c *protocol.StreamChunk) {
	key := l.toolKey(c)
	args := decodeToolPayload(c.Args, "input")
	id, ok := l.toolItem[key]
	if !ok {
		id = l.feed.appendFeedItem(FeedItem{
			Kind:       FeedTool,
			ToolName:   c.Name,
			ToolStatus: ToolRunning,
		})
		l.toolItem[key] = id
	}
	l.feed.updateFeedItem(id, func(it *FeedItem) {
		if c.Name != "" {
			it.ToolName = c.Name
		}
		if args != nil {
			it.ToolArgs = args
		}
	})
}

func (l *streamLifecycle) completeTool(c *protocol.StreamChunk, result map[string]any) {
	key := l.toolKey(c)
	if id, ok := l.toolItem[key]; ok {
		// Drop the key so a duplicated result cannot mutate the item
		// after it reached its terminal state.
		delete(l.toolItem, key)
		delete(l.toolInput, key)
		l.feed.updateFeedItem(id, func(it *FeedItem) {
			it.ToolStatus = ToolDone
			it.ToolResult = result
		})
		return
	}
	// Result without a tracked start still deserves a feed entry.
	l.feed.appendFeedItem(FeedItem{
		Kind:       FeedTool,
		ToolName:   c.Name,
		ToolStatus: ToolDone,
		ToolResult: result,
	})
}

func (l *streamLifecycle) publishUsage(raw json.RawMessage) {
	if u, ok := protocol.ExtractUsage(raw); ok {
		l.feed.setUsage(u)
	}
}

// parseToolInput interprets accumulated tool-input text. Structured
// JSON wins; anything else stays opaque under a single input key.
func parseToolInput(text string) map[string]any {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		return obj
	}
	var arr []any
	if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
		return map[string]any{"input": arr}
	}
	return map[string]any{"input": trimmed}
}

// decodeToolPayload decodes a raw JSON payload into a map, wrapping
// non-object payloads under the given key. Returns nil for empty input.
func decodeToolPayload(raw json.RawMessage, key string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return map[string]any{key: v}
	}
	return map[string]any{key: string(raw)}
}

// previewLine renders a short system line for chunk kinds that carry
// opaque payloads.
func previewLine(kind string, c *protocol.StreamChunk) string {
	body := c.Text
	if body == "" && len(c.Value) > 0 {
		body = string(c.Value)
	}
	body = strings.Join(strings.Fields(body), " ")
	body = truncateText(body, systemPreviewLen)
	if body == "" {
		return kind
	}
	return kind + ": " + body
}
