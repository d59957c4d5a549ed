package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/mweinbach/cowork/protocol"
	"github.com/mweinbach/cowork/store"
)

// printer renders feed items as plain lines. Items are printed once
// by id; while the server is busy streaming, in-place updates are held
// back and flushed when the turn settles so each item appears once in
// its final form.
type printer struct {
	mu     sync.Mutex
	w      io.Writer
	lastID int64

	askShown      string
	approvalShown string
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) flush(snap store.SessionState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(snap.Feed); n > 0 && snap.Feed[n-1].ID < p.lastID {
		// Counter restarted: handshake or reset rebuilt the feed.
		p.lastID = -1
	}

	if !snap.Busy {
		for _, it := range snap.Feed {
			if it.ID > p.lastID {
				fmt.Fprintln(p.w, renderItem(it))
				p.lastID = it.ID
			}
		}
	}

	if ask := snap.PendingAsk; ask != nil && ask.RequestID != p.askShown {
		p.askShown = ask.RequestID
		fmt.Fprintf(p.w, "? %s\n", store.NormalizeQuestion(ask.Question, 200))
		if store.ShouldRenderPicklist(ask.Options) {
			for i, opt := range store.NormalizeOptions(ask.Options) {
				fmt.Fprintf(p.w, "  %d) %s\n", i+1, opt)
			}
		}
	}
	if ap := snap.PendingApproval; ap != nil && ap.RequestID != p.approvalShown {
		p.approvalShown = ap.RequestID
		fmt.Fprintf(p.w, "! approve %s? (/yes or /no)\n", ap.Tool)
	}
}

func renderItem(it store.FeedItem) string {
	switch it.Kind {
	case store.FeedMessage:
		prefix := "you"
		if it.Role == store.RoleAssistant {
			prefix = "assistant"
		}
		return fmt.Sprintf("%s: %s", prefix, it.Text)
	case store.FeedReasoning:
		return fmt.Sprintf("(%s) %s", it.ReasoningKind, it.Text)
	case store.FeedTool:
		name := it.ToolName
		if it.ToolScope != "" {
			name = it.ToolScope + "/" + name
		}
		if it.ToolStatus == store.ToolDone {
			return fmt.Sprintf("tool %s: %s", name, compactJSON(it.ToolResult))
		}
		return fmt.Sprintf("tool %s running %s", name, compactJSON(it.ToolArgs))
	case store.FeedTodos:
		_, active, done := protocol.CountByStatus(it.Todos)
		if active > 0 {
			return fmt.Sprintf("todos: %d/%d done, %d in progress", done, len(it.Todos), active)
		}
		return fmt.Sprintf("todos: %d/%d done", done, len(it.Todos))
	case store.FeedError:
		return fmt.Sprintf("error: %s", it.ErrorMessage)
	case store.FeedSkill:
		return fmt.Sprintf("skill %s loaded", it.Skill)
	case store.FeedBackupState:
		return fmt.Sprintf("backup: %s", it.BackupReason)
	default:
		return "* " + it.Line
	}
}

func compactJSON(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
