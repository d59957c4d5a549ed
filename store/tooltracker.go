package store

import (
	"encoding/json"
	"strings"
)

// toolMarker is a parsed legacy tool log line. The wire format is
//
//	[scope] tool> name {"path":"a.ts"}
//	tool< name {"chars":10}
//
// where the bracketed scope and the JSON payload are both optional.
type toolMarker struct {
	scope   string
	name    string
	finish  bool
	payload map[string]any
}

// parseToolMarker returns nil when the line is not a tool marker.
func parseToolMarker(line string) *toolMarker {
	rest := strings.TrimSpace(line)

	var scope string
	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return nil
		}
		scope = strings.TrimSpace(rest[1:end])
		rest = strings.TrimSpace(rest[end+1:])
	}

	var finish bool
	switch {
	case strings.HasPrefix(rest, "tool>"):
		rest = rest[len("tool>"):]
	case strings.HasPrefix(rest, "tool<"):
		finish = true
		rest = rest[len("tool<"):]
	default:
		return nil
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil
	}

	name := rest
	var payloadText string
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		name = rest[:i]
		payloadText = strings.TrimSpace(rest[i+1:])
	}

	m := &toolMarker{scope: scope, name: name, finish: finish}
	if payloadText != "" {
		m.payload = parseToolPayload(payloadText, finish)
	}
	return m
}

// parseToolPayload decodes the trailing JSON object. Anything that is
// not an object is kept as opaque text so the line is never lost.
func parseToolPayload(text string, finish bool) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj
	}
	key := "input"
	if finish {
		key = "output"
	}
	return map[string]any{key: text}
}

// toolStackKey scopes pending tool stacks so same-named tools run by
// different sub-agents never pair across scopes.
func toolStackKey(scope, name string) string {
	return scope + "|" + name
}

// handleToolMarker applies a parsed marker to the feed. Start markers
// open a running tool item and push it onto the per-key stack; finish
// markers pop the most recent matching start and complete it.
// Callers hold s.mu.
func (s *Store) handleToolMarker(m *toolMarker) {
	key := toolStackKey(m.scope, m.name)

	if !m.finish {
		id := s.appendFeedItem(FeedItem{
			Kind:       FeedTool,
			ToolName:   m.name,
			ToolScope:  m.scope,
			ToolStatus: ToolRunning,
			ToolArgs:   m.payload,
		})
		s.pendingTools[key] = append(s.pendingTools[key], id)
		return
	}

	stack := s.pendingTools[key]
	if len(stack) == 0 {
		// Orphan finish: no start was seen, record it as already done.
		s.appendFeedItem(FeedItem{
			Kind:       FeedTool,
			ToolName:   m.name,
			ToolScope:  m.scope,
			ToolStatus: ToolDone,
			ToolResult: m.payload,
		})
		return
	}

	id := stack[len(stack)-1]
	if len(stack) == 1 {
		delete(s.pendingTools, key)
	} else {
		s.pendingTools[key] = stack[:len(stack)-1]
	}
	s.updateFeedItem(id, func(it *FeedItem) {
		it.ToolStatus = ToolDone
		it.ToolResult = m.payload
	})
}
