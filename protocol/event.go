// Package protocol defines the JSON wire types exchanged with a Cowork
// session server: inbound server events, outbound client messages, and the
// model-stream chunk envelope.
//
// The wire format is a single JSON object per frame carrying a "type"
// discriminator and, after the handshake, a "sessionId". Parsing is
// deliberately tolerant: unknown event types and extra fields are preserved
// or ignored rather than rejected, so newer servers don't break older
// clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventType discriminates inbound server events.
type EventType string

// Inbound event types. Anything else is treated as unknown and ignored by
// the store.
const (
	EventServerHello         EventType = "server_hello"
	EventSessionBusy         EventType = "session_busy"
	EventResetDone           EventType = "reset_done"
	EventUserMessage         EventType = "user_message"
	EventAssistantMessage    EventType = "assistant_message"
	EventReasoning           EventType = "reasoning"
	EventModelStreamChunk    EventType = "model_stream_chunk"
	EventLog                 EventType = "log"
	EventTodos               EventType = "todos"
	EventTools               EventType = "tools"
	EventCommands            EventType = "commands"
	EventSessions            EventType = "sessions"
	EventSessionSettings     EventType = "session_settings"
	EventSessionInfo         EventType = "session_info"
	EventObservabilityStatus EventType = "observability_status"
	EventHarnessContext      EventType = "harness_context"
	EventSkillsList          EventType = "skills_list"
	EventConfigUpdated       EventType = "config_updated"
	EventSkillContent        EventType = "skill_content"
	EventSessionBackupState  EventType = "session_backup_state"
	EventAsk                 EventType = "ask"
	EventApproval            EventType = "approval"
	EventError               EventType = "error"
)

// Event is an inbound server event. One struct covers every event type;
// only the fields for the event's type are populated (the others stay at
// their zero value). This mirrors how the server frames events: a flat
// object with a type tag and whichever payload fields apply.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`

	// server_hello
	Resumed         bool      `json:"resumed,omitempty"`
	Provider        string    `json:"provider,omitempty"`
	Model           string    `json:"model,omitempty"`
	Cwd             string    `json:"cwd,omitempty"`
	PendingAsk      *Ask      `json:"pendingAsk,omitempty"`
	PendingApproval *Approval `json:"pendingApproval,omitempty"`

	// session_busy (also used by server_hello for resumed sessions)
	Busy bool `json:"busy,omitempty"`

	// user_message / assistant_message / reasoning
	Text            string `json:"text,omitempty"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
	Kind            string `json:"kind,omitempty"`   // "reasoning" or "summary"
	TurnID          string `json:"turnId,omitempty"` // links consolidated events to streamed turns

	// model_stream_chunk
	Chunk *StreamChunk `json:"chunk,omitempty"`

	// log
	Line string `json:"line,omitempty"`

	// todos
	Todos []TodoItem `json:"todos,omitempty"`

	// catalogs
	Tools    []ToolInfo    `json:"tools,omitempty"`
	Commands []CommandInfo `json:"commands,omitempty"`
	Sessions []SessionInfo `json:"sessions,omitempty"`
	Skills   []SkillInfo   `json:"skills,omitempty"`

	// session_settings / session_info
	Settings *SessionSettings `json:"settings,omitempty"`
	Info     *SessionDetails  `json:"info,omitempty"`

	// observability_status / harness_context
	Observability *ObservabilityStatus `json:"observability,omitempty"`
	Harness       *HarnessContext      `json:"harness,omitempty"`

	// skill_content
	Skill   string `json:"skill,omitempty"`
	Content string `json:"content,omitempty"`

	// session_backup_state
	Reason string          `json:"reason,omitempty"`
	Backup json.RawMessage `json:"backup,omitempty"`

	// ask / approval
	Ask      *Ask      `json:"ask,omitempty"`
	Approval *Approval `json:"approval,omitempty"`

	// error
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Source  string `json:"source,omitempty"`
}

// ParseEvent parses a single inbound frame. It rejects frames that aren't
// JSON objects or that lack a type tag; events with an unrecognized type
// parse successfully so the caller can ignore them.
func ParseEvent(data []byte) (*Event, error) {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("event is not a JSON object")
	}

	var ev Event
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("event has no type")
	}
	return &ev, nil
}

// Ask is a question the agent needs answered before continuing.
type Ask struct {
	RequestID string   `json:"requestId"`
	Question  string   `json:"question"`
	Options   []string `json:"options,omitempty"`
}

// Approval is a tool invocation awaiting user approval.
type Approval struct {
	RequestID   string         `json:"requestId"`
	Tool        string         `json:"tool"`
	Description string         `json:"description,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
}

// ToolInfo describes one entry in the discovered tool catalog.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CommandInfo describes one entry in the discovered command catalog.
type CommandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SessionInfo is a summary entry in the server's session list.
type SessionInfo struct {
	ID     string `json:"id"`
	Title  string `json:"title,omitempty"`
	Status string `json:"status,omitempty"`
}

// SkillInfo describes one entry in the skills catalog.
type SkillInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SessionSettings carries the server-side session settings snapshot.
type SessionSettings struct {
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	EnableMCP bool   `json:"enableMcp,omitempty"`
	Yolo      bool   `json:"yolo,omitempty"`
}

// SessionDetails carries identity details for the current session.
type SessionDetails struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Cwd      string `json:"cwd,omitempty"`
}

// ObservabilityStatus reports whether server-side tracing is active.
type ObservabilityStatus struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint,omitempty"`
}

// HarnessContext identifies the agent harness running server-side.
type HarnessContext struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}
