package store

import (
	"encoding/json"

	"github.com/mweinbach/cowork/protocol"
)

// FeedKind discriminates the variants of a transcript entry.
type FeedKind string

const (
	FeedMessage     FeedKind = "message"
	FeedReasoning   FeedKind = "reasoning"
	FeedTool        FeedKind = "tool"
	FeedTodos       FeedKind = "todos"
	FeedSystem      FeedKind = "system"
	FeedLog         FeedKind = "log"
	FeedError       FeedKind = "error"
	FeedSkill       FeedKind = "skill_content"
	FeedBackupState FeedKind = "session_backup_state"
)

// Role identifies the author of a message feed item.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolStatus tracks whether a tool feed item is still executing.
type ToolStatus string

const (
	ToolRunning ToolStatus = "running"
	ToolDone    ToolStatus = "done"
)

// FeedItem is a single transcript entry. Only the fields relevant to
// its Kind are populated. IDs are assigned locally in arrival order
// and restart from 1 on every handshake or reset.
type FeedItem struct {
	ID   int64    `json:"id"`
	Kind FeedKind `json:"kind"`

	// message / reasoning
	Role          Role   `json:"role,omitempty"`
	Text          string `json:"text,omitempty"`
	ReasoningKind string `json:"reasoningKind,omitempty"`

	// tool
	ToolName   string         `json:"toolName,omitempty"`
	ToolScope  string         `json:"toolScope,omitempty"`
	ToolStatus ToolStatus     `json:"toolStatus,omitempty"`
	ToolArgs   map[string]any `json:"toolArgs,omitempty"`
	ToolResult map[string]any `json:"toolResult,omitempty"`

	// todos
	Todos []protocol.TodoItem `json:"todos,omitempty"`

	// system / log
	Line string `json:"line,omitempty"`

	// error
	ErrorMessage string `json:"errorMessage,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorSource  string `json:"errorSource,omitempty"`

	// skill_content
	Skill   string `json:"skill,omitempty"`
	Content string `json:"content,omitempty"`

	// session_backup_state
	BackupReason string          `json:"backupReason,omitempty"`
	Backup       json.RawMessage `json:"backup,omitempty"`
}

// copyItem returns a deep copy so snapshots stay isolated from the
// store's internal mutation of still-streaming items.
func copyItem(it FeedItem) FeedItem {
	out := it
	if it.ToolArgs != nil {
		out.ToolArgs = copyJSONMap(it.ToolArgs)
	}
	if it.ToolResult != nil {
		out.ToolResult = copyJSONMap(it.ToolResult)
	}
	if it.Todos != nil {
		out.Todos = make([]protocol.TodoItem, len(it.Todos))
		copy(out.Todos, it.Todos)
	}
	if it.Backup != nil {
		out.Backup = make(json.RawMessage, len(it.Backup))
		copy(out.Backup, it.Backup)
	}
	return out
}

func copyJSONMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case map[string]any:
			out[k] = copyJSONMap(t)
		case []any:
			cp := make([]any, len(t))
			copy(cp, t)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}
