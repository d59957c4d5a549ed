package store

import "github.com/mweinbach/cowork/protocol"

// ConnStatus is the client's view of the transport connection.
type ConnStatus string

const (
	StatusConnecting   ConnStatus = "connecting"
	StatusConnected    ConnStatus = "connected"
	StatusDisconnected ConnStatus = "disconnected"
)

// SessionState is a point-in-time snapshot of everything the client
// knows about the active session. All slices and pointers are deep
// copies owned by the caller.
type SessionState struct {
	Status    ConnStatus `json:"status"`
	SessionID string     `json:"sessionId,omitempty"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Cwd      string `json:"cwd,omitempty"`
	Busy     bool   `json:"busy"`

	Feed  []FeedItem          `json:"feed"`
	Todos []protocol.TodoItem `json:"todos,omitempty"`

	PendingAsk      *protocol.Ask      `json:"pendingAsk,omitempty"`
	PendingApproval *protocol.Approval `json:"pendingApproval,omitempty"`

	Tools    []protocol.ToolInfo    `json:"tools,omitempty"`
	Commands []protocol.CommandInfo `json:"commands,omitempty"`
	Sessions []protocol.SessionInfo `json:"sessions,omitempty"`
	Skills   []protocol.SkillInfo   `json:"skills,omitempty"`

	Settings      *protocol.SessionSettings     `json:"settings,omitempty"`
	Info          *protocol.SessionDetails      `json:"info,omitempty"`
	Observability *protocol.ObservabilityStatus `json:"observability,omitempty"`
	Harness       *protocol.HarnessContext      `json:"harness,omitempty"`

	Usage *protocol.UsageSnapshot `json:"usage,omitempty"`
}

// Snapshot returns a deep copy of the current session state. Safe to
// call from any goroutine.
func (s *Store) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.state
	out.Feed = make([]FeedItem, len(s.state.Feed))
	for i, it := range s.state.Feed {
		out.Feed[i] = copyItem(it)
	}
	if s.state.Todos != nil {
		out.Todos = make([]protocol.TodoItem, len(s.state.Todos))
		copy(out.Todos, s.state.Todos)
	}
	if s.state.Tools != nil {
		out.Tools = make([]protocol.ToolInfo, len(s.state.Tools))
		copy(out.Tools, s.state.Tools)
	}
	if s.state.Commands != nil {
		out.Commands = make([]protocol.CommandInfo, len(s.state.Commands))
		copy(out.Commands, s.state.Commands)
	}
	if s.state.Sessions != nil {
		out.Sessions = make([]protocol.SessionInfo, len(s.state.Sessions))
		copy(out.Sessions, s.state.Sessions)
	}
	if s.state.Skills != nil {
		out.Skills = make([]protocol.SkillInfo, len(s.state.Skills))
		copy(out.Skills, s.state.Skills)
	}
	if s.state.PendingAsk != nil {
		ask := *s.state.PendingAsk
		ask.Options = append([]string(nil), s.state.PendingAsk.Options...)
		out.PendingAsk = &ask
	}
	if s.state.PendingApproval != nil {
		ap := *s.state.PendingApproval
		if s.state.PendingApproval.Args != nil {
			ap.Args = copyJSONMap(s.state.PendingApproval.Args)
		}
		out.PendingApproval = &ap
	}
	if s.state.Settings != nil {
		v := *s.state.Settings
		out.Settings = &v
	}
	if s.state.Info != nil {
		v := *s.state.Info
		out.Info = &v
	}
	if s.state.Observability != nil {
		v := *s.state.Observability
		out.Observability = &v
	}
	if s.state.Harness != nil {
		v := *s.state.Harness
		out.Harness = &v
	}
	if s.state.Usage != nil {
		v := *s.state.Usage
		out.Usage = &v
	}
	return out
}
