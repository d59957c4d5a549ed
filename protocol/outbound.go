package protocol

// Outbound message shapes. Every message carries the session id the store
// currently holds; the server drops messages for sessions it no longer owns.

// UserMessage submits a new user prompt to the session.
type UserMessage struct {
	Type            string `json:"type"`
	SessionID       string `json:"sessionId"`
	Text            string `json:"text"`
	ClientMessageID string `json:"clientMessageId"`
}

// NewUserMessage builds a user_message.
func NewUserMessage(sessionID, text, clientMessageID string) UserMessage {
	return UserMessage{Type: "user_message", SessionID: sessionID, Text: text, ClientMessageID: clientMessageID}
}

// AskResponse answers a pending ask.
type AskResponse struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	RequestID string `json:"requestId"`
	Answer    string `json:"answer"`
}

// NewAskResponse builds an ask_response.
func NewAskResponse(sessionID, requestID, answer string) AskResponse {
	return AskResponse{Type: "ask_response", SessionID: sessionID, RequestID: requestID, Answer: answer}
}

// ApprovalResponse resolves a pending tool approval.
type ApprovalResponse struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	RequestID string `json:"requestId"`
	Approved  bool   `json:"approved"`
}

// NewApprovalResponse builds an approval_response.
func NewApprovalResponse(sessionID, requestID string, approved bool) ApprovalResponse {
	return ApprovalResponse{Type: "approval_response", SessionID: sessionID, RequestID: requestID, Approved: approved}
}

// SetModel changes the session's provider/model pair.
type SetModel struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
}

// NewSetModel builds a set_model.
func NewSetModel(sessionID, provider, model string) SetModel {
	return SetModel{Type: "set_model", SessionID: sessionID, Provider: provider, Model: model}
}

// ConnectProvider supplies provider credentials to the session.
type ConnectProvider struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Provider  string `json:"provider"`
	APIKey    string `json:"apiKey,omitempty"`
}

// NewConnectProvider builds a connect_provider.
func NewConnectProvider(sessionID, provider, apiKey string) ConnectProvider {
	return ConnectProvider{Type: "connect_provider", SessionID: sessionID, Provider: provider, APIKey: apiKey}
}

// SetEnableMCP toggles MCP tool availability.
type SetEnableMCP struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	EnableMCP bool   `json:"enableMcp"`
}

// NewSetEnableMCP builds a set_enable_mcp.
func NewSetEnableMCP(sessionID string, enable bool) SetEnableMCP {
	return SetEnableMCP{Type: "set_enable_mcp", SessionID: sessionID, EnableMCP: enable}
}

// SessionCommand covers the bare sessionId-only requests.
type SessionCommand struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// NewListTools builds a list_tools request.
func NewListTools(sessionID string) SessionCommand {
	return SessionCommand{Type: "list_tools", SessionID: sessionID}
}

// NewListCommands builds a list_commands request.
func NewListCommands(sessionID string) SessionCommand {
	return SessionCommand{Type: "list_commands", SessionID: sessionID}
}

// NewReset builds a reset request.
func NewReset(sessionID string) SessionCommand {
	return SessionCommand{Type: "reset", SessionID: sessionID}
}

// NewCancel builds a cancel request.
func NewCancel(sessionID string) SessionCommand {
	return SessionCommand{Type: "cancel", SessionID: sessionID}
}

// ExecuteCommand invokes a discovered server command.
type ExecuteCommand struct {
	Type            string `json:"type"`
	SessionID       string `json:"sessionId"`
	Name            string `json:"name"`
	Arguments       string `json:"arguments,omitempty"`
	ClientMessageID string `json:"clientMessageId"`
}

// NewExecuteCommand builds an execute_command.
func NewExecuteCommand(sessionID, name, arguments, clientMessageID string) ExecuteCommand {
	return ExecuteCommand{Type: "execute_command", SessionID: sessionID, Name: name, Arguments: arguments, ClientMessageID: clientMessageID}
}
