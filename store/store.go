// Package store holds the client-side session state and reconciles
// the server event stream into a renderable transcript. It is the
// single writer for session state; callers read through Snapshot and
// mutate only through the action methods, which forward wire messages
// through the injected send function.
package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mweinbach/cowork/logger"
	"github.com/mweinbach/cowork/protocol"
)

// SendFunc delivers one outbound message to the server. It reports
// false when the transport cannot accept the message.
type SendFunc func(v any) bool

// Store owns the session state for a single connection. All exported
// methods are safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	send SendFunc
	log  *slog.Logger

	onChange func()

	state        SessionState
	feedID       int64
	sentIDs      map[string]struct{}
	pendingTools map[string][]int64
	stream       *streamLifecycle
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithOnChange registers a callback invoked after every state
// mutation, outside the store lock.
func WithOnChange(fn func()) Option {
	return func(s *Store) { s.onChange = fn }
}

// WithLogger overrides the default component logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New creates a Store that forwards outbound messages through send.
func New(send SendFunc, opts ...Option) *Store {
	s := &Store{
		send:         send,
		log:          logger.WithComponent("store"),
		sentIDs:      make(map[string]struct{}),
		pendingTools: make(map[string][]int64),
		state:        SessionState{Status: StatusConnecting},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.send == nil {
		s.send = func(any) bool { return false }
	}
	s.stream = newStreamLifecycle(s, s.log)
	return s
}

// SetSend swaps the outbound send function. Used when the transport is
// constructed after the store so the two can reference each other.
func (s *Store) SetSend(send SendFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if send == nil {
		send = func(any) bool { return false }
	}
	s.send = send
}

// SetConnectionStatus records a transport status change. A disconnect
// invalidates the session id so stale events after reconnect are
// dropped until the next handshake.
func (s *Store) SetConnectionStatus(status ConnStatus) {
	s.mu.Lock()
	prev := s.state.Status
	s.state.Status = status
	if status == StatusDisconnected && prev != StatusDisconnected {
		s.state.SessionID = ""
		s.appendSystemLine("connection lost")
	}
	s.mu.Unlock()
	s.notify()
}

// HandleEvent parses and applies one raw frame from the transport.
// Malformed frames are logged and dropped.
func (s *Store) HandleEvent(raw []byte) {
	ev, err := protocol.ParseEvent(raw)
	if err != nil {
		s.log.Debug("dropping malformed event", "error", err)
		return
	}
	s.Apply(ev)
}

// Apply applies one parsed event to the session state.
func (s *Store) Apply(ev *protocol.Event) {
	s.mu.Lock()
	s.applyLocked(ev)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) applyLocked(ev *protocol.Event) {
	// Events from a superseded session are ignored. The handshake is
	// exempt since it is what establishes the session id.
	if ev.Type != protocol.EventServerHello &&
		ev.SessionID != "" && ev.SessionID != s.state.SessionID {
		s.log.Debug("dropping stale event",
			"type", ev.Type, "sessionId", ev.SessionID, "current", s.state.SessionID)
		return
	}

	switch ev.Type {
	case protocol.EventServerHello:
		s.handleHello(ev)

	case protocol.EventSessionBusy:
		s.state.Busy = ev.Busy
		s.clearPendingTools()
		s.stream.setBusy(ev.Busy)

	case protocol.EventResetDone:
		s.resetSession()
		// The marker sits outside the id sequence so the first item
		// appended after a reset gets id 1.
		s.state.Feed = []FeedItem{{Kind: FeedSystem, Line: "conversation reset"}}

	case protocol.EventUserMessage:
		if ev.ClientMessageID != "" {
			if _, ok := s.sentIDs[ev.ClientMessageID]; ok {
				// Echo of a message already shown optimistically.
				delete(s.sentIDs, ev.ClientMessageID)
				return
			}
		}
		s.appendFeedItem(FeedItem{Kind: FeedMessage, Role: RoleUser, Text: ev.Text})

	case protocol.EventAssistantMessage:
		if s.stream.isDuplicateAssistant(ev.TurnID, ev.Text) {
			s.log.Debug("suppressing consolidated assistant duplicate", "turnId", ev.TurnID)
			return
		}
		s.appendFeedItem(FeedItem{Kind: FeedMessage, Role: RoleAssistant, Text: ev.Text})

	case protocol.EventReasoning:
		if s.stream.isDuplicateReasoning(ev.TurnID) {
			s.log.Debug("suppressing consolidated reasoning duplicate", "turnId", ev.TurnID)
			return
		}
		kind := ev.Kind
		if kind == "" {
			kind = "reasoning"
		}
		s.appendFeedItem(FeedItem{Kind: FeedReasoning, ReasoningKind: kind, Text: ev.Text})

	case protocol.EventModelStreamChunk:
		if ev.Chunk != nil {
			s.stream.handleChunk(ev.Chunk)
		}

	case protocol.EventLog:
		s.handleLog(ev.Line)

	case protocol.EventTodos:
		s.state.Todos = append([]protocol.TodoItem(nil), ev.Todos...)
		s.appendFeedItem(FeedItem{Kind: FeedTodos, Todos: append([]protocol.TodoItem(nil), ev.Todos...)})

	case protocol.EventTools:
		s.state.Tools = append([]protocol.ToolInfo(nil), ev.Tools...)
		s.appendSystemLine(fmt.Sprintf("tools updated (%d)", len(ev.Tools)))

	case protocol.EventCommands:
		s.state.Commands = append([]protocol.CommandInfo(nil), ev.Commands...)
		s.appendSystemLine(fmt.Sprintf("commands updated (%d)", len(ev.Commands)))

	case protocol.EventSessions:
		s.state.Sessions = append([]protocol.SessionInfo(nil), ev.Sessions...)

	case protocol.EventSkillsList:
		s.state.Skills = append([]protocol.SkillInfo(nil), ev.Skills...)

	case protocol.EventSessionSettings:
		if ev.Settings != nil {
			v := *ev.Settings
			s.state.Settings = &v
		}

	case protocol.EventSessionInfo:
		if ev.Info != nil {
			v := *ev.Info
			s.state.Info = &v
			if v.Provider != "" {
				s.state.Provider = v.Provider
			}
			if v.Model != "" {
				s.state.Model = v.Model
			}
			if v.Cwd != "" {
				s.state.Cwd = v.Cwd
			}
		}

	case protocol.EventObservabilityStatus:
		if ev.Observability != nil {
			v := *ev.Observability
			s.state.Observability = &v
		}

	case protocol.EventHarnessContext:
		if ev.Harness != nil {
			v := *ev.Harness
			s.state.Harness = &v
		}

	case protocol.EventConfigUpdated:
		s.appendSystemLine("configuration updated")

	case protocol.EventSkillContent:
		s.appendFeedItem(FeedItem{Kind: FeedSkill, Skill: ev.Skill, Content: ev.Content})

	case protocol.EventSessionBackupState:
		s.appendFeedItem(FeedItem{Kind: FeedBackupState, BackupReason: ev.Reason, Backup: ev.Backup})

	case protocol.EventAsk:
		if ev.Ask == nil {
			return
		}
		ask := *ev.Ask
		s.state.PendingAsk = &ask
		s.appendSystemLine("question: " + NormalizeQuestion(ask.Question, 120))

	case protocol.EventApproval:
		if ev.Approval == nil {
			return
		}
		ap := *ev.Approval
		s.state.PendingApproval = &ap
		s.appendSystemLine("approval requested: " + ap.Tool)

	case protocol.EventError:
		s.appendFeedItem(FeedItem{
			Kind:         FeedError,
			ErrorMessage: ev.Message,
			ErrorCode:    ev.Code,
			ErrorSource:  ev.Source,
		})

	default:
		s.log.Debug("ignoring unknown event", "type", ev.Type)
	}
}

// handleHello rebuilds session state from scratch. A resumed session
// restores the server-reported busy flag and pending interactions;
// a fresh one starts clean.
func (s *Store) handleHello(ev *protocol.Event) {
	s.resetSession()
	s.state.Status = StatusConnected
	s.state.SessionID = ev.SessionID
	s.state.Provider = ev.Provider
	s.state.Model = ev.Model
	s.state.Cwd = ev.Cwd

	if ev.Resumed {
		s.state.Busy = ev.Busy
		if ev.PendingAsk != nil {
			ask := *ev.PendingAsk
			s.state.PendingAsk = &ask
		}
		if ev.PendingApproval != nil {
			ap := *ev.PendingApproval
			s.state.PendingApproval = &ap
		}
	}

	s.appendSystemLine("connected to session " + ev.SessionID)

	s.send(protocol.NewListTools(ev.SessionID))
	s.send(protocol.NewListCommands(ev.SessionID))
}

// resetSession clears everything derived from the conversation. The
// feed id counter restarts so the next assigned id is 1.
func (s *Store) resetSession() {
	s.state.Feed = nil
	s.state.Todos = nil
	s.state.Busy = false
	s.state.PendingAsk = nil
	s.state.PendingApproval = nil
	s.state.Usage = nil
	s.feedID = 0
	s.sentIDs = make(map[string]struct{})
	s.pendingTools = make(map[string][]int64)
	s.stream.fullReset()
}

// handleLog routes a log line: raw provider debug is dropped, tool
// markers feed the tracker (or are dropped while a structured turn is
// streaming the same calls), everything else lands in the feed.
func (s *Store) handleLog(line string) {
	if isRawDebugLine(line) {
		s.log.Debug("suppressing raw stream debug line")
		return
	}
	if m := parseToolMarker(line); m != nil {
		if s.stream.isTurnActive() {
			// The structured chunk stream is authoritative for this turn.
			return
		}
		s.handleToolMarker(m)
		return
	}
	s.appendFeedItem(FeedItem{Kind: FeedLog, Line: line})
}

// feedMutator implementation. Callers hold s.mu.

func (s *Store) appendFeedItem(it FeedItem) int64 {
	s.feedID++
	it.ID = s.feedID
	s.state.Feed = append(s.state.Feed, it)
	return it.ID
}

func (s *Store) updateFeedItem(id int64, fn func(*FeedItem)) {
	for i := len(s.state.Feed) - 1; i >= 0; i-- {
		if s.state.Feed[i].ID == id {
			fn(&s.state.Feed[i])
			return
		}
	}
}

func (s *Store) appendSystemLine(line string) {
	s.appendFeedItem(FeedItem{Kind: FeedSystem, Line: line})
}

func (s *Store) clearPendingTools() {
	s.pendingTools = make(map[string][]int64)
}

func (s *Store) setUsage(u protocol.UsageSnapshot) {
	s.state.Usage = &u
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// newClientMessageID returns an id unique enough to match an echoed
// user message back to this client.
func newClientMessageID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// Actions. Each requires an active session, mutates local state
// optimistically where that keeps the UI honest, and forwards a wire
// message. All return false without a session.

// SendMessage shows the message immediately and registers its client
// id so the server echo is suppressed. A pending ask or approval
// blocks new messages until it is resolved.
func (s *Store) SendMessage(text string) bool {
	s.mu.Lock()
	sid := s.state.SessionID
	if sid == "" || s.state.PendingAsk != nil || s.state.PendingApproval != nil {
		s.mu.Unlock()
		return false
	}
	id := newClientMessageID()
	s.sentIDs[id] = struct{}{}
	s.appendFeedItem(FeedItem{Kind: FeedMessage, Role: RoleUser, Text: text})
	msg := protocol.NewUserMessage(sid, text, id)
	send := s.send
	s.mu.Unlock()
	s.notify()
	return send(msg)
}

// AnswerAsk resolves the pending question, clearing it locally before
// the server confirms.
func (s *Store) AnswerAsk(answer string) bool {
	s.mu.Lock()
	sid := s.state.SessionID
	ask := s.state.PendingAsk
	if sid == "" || ask == nil {
		s.mu.Unlock()
		return false
	}
	s.state.PendingAsk = nil
	msg := protocol.NewAskResponse(sid, ask.RequestID, answer)
	send := s.send
	s.mu.Unlock()
	s.notify()
	return send(msg)
}

// RespondApproval resolves the pending tool approval.
func (s *Store) RespondApproval(approved bool) bool {
	s.mu.Lock()
	sid := s.state.SessionID
	ap := s.state.PendingApproval
	if sid == "" || ap == nil {
		s.mu.Unlock()
		return false
	}
	s.state.PendingApproval = nil
	msg := protocol.NewApprovalResponse(sid, ap.RequestID, approved)
	send := s.send
	s.mu.Unlock()
	s.notify()
	return send(msg)
}

// SetModel switches provider and model, reflecting the choice locally
// right away.
func (s *Store) SetModel(provider, model string) bool {
	s.mu.Lock()
	sid := s.state.SessionID
	if sid == "" {
		s.mu.Unlock()
		return false
	}
	s.state.Provider = provider
	s.state.Model = model
	msg := protocol.NewSetModel(sid, provider, model)
	send := s.send
	s.mu.Unlock()
	s.notify()
	return send(msg)
}

// ConnectProvider forwards provider credentials to the server.
func (s *Store) ConnectProvider(provider, apiKey string) bool {
	s.mu.Lock()
	sid := s.state.SessionID
	send := s.send
	s.mu.Unlock()
	if sid == "" {
		return false
	}
	return send(protocol.NewConnectProvider(sid, provider, apiKey))
}

// SetEnableMCP toggles MCP tooling for the session.
func (s *Store) SetEnableMCP(enable bool) bool {
	s.mu.Lock()
	sid := s.state.SessionID
	if sid == "" {
		s.mu.Unlock()
		return false
	}
	if s.state.Settings != nil {
		s.state.Settings.EnableMCP = enable
	}
	msg := protocol.NewSetEnableMCP(sid, enable)
	send := s.send
	s.mu.Unlock()
	s.notify()
	return send(msg)
}

// RefreshTools asks the server for the current tool inventory.
func (s *Store) RefreshTools() bool {
	s.mu.Lock()
	sid := s.state.SessionID
	send := s.send
	s.mu.Unlock()
	if sid == "" {
		return false
	}
	return send(protocol.NewListTools(sid))
}

// RefreshCommands asks the server for the current command inventory.
func (s *Store) RefreshCommands() bool {
	s.mu.Lock()
	sid := s.state.SessionID
	send := s.send
	s.mu.Unlock()
	if sid == "" {
		return false
	}
	return send(protocol.NewListCommands(sid))
}

// ExecuteCommand runs a slash command, shown optimistically as a user
// message and deduplicated on echo like SendMessage.
func (s *Store) ExecuteCommand(name, arguments string) bool {
	s.mu.Lock()
	sid := s.state.SessionID
	if sid == "" {
		s.mu.Unlock()
		return false
	}
	id := newClientMessageID()
	s.sentIDs[id] = struct{}{}
	text := "/" + name
	if arguments != "" {
		text += " " + arguments
	}
	s.appendFeedItem(FeedItem{Kind: FeedMessage, Role: RoleUser, Text: text})
	msg := protocol.NewExecuteCommand(sid, name, arguments, id)
	send := s.send
	s.mu.Unlock()
	s.notify()
	return send(msg)
}

// Reset requests a conversation reset. Local state is rebuilt when
// the server confirms with reset_done.
func (s *Store) Reset() bool {
	s.mu.Lock()
	sid := s.state.SessionID
	send := s.send
	s.mu.Unlock()
	if sid == "" {
		return false
	}
	return send(protocol.NewReset(sid))
}

// Cancel interrupts the in-flight turn.
func (s *Store) Cancel() bool {
	s.mu.Lock()
	sid := s.state.SessionID
	send := s.send
	s.mu.Unlock()
	if sid == "" {
		return false
	}
	return send(protocol.NewCancel(sid))
}
