package gateway

import (
	"context"

	"github.com/go-go-golems/triage/pkg/conversation"
	"github.com/go-go-golems/triage/pkg/history"
	"github.com/go-go-golems/triage/pkg/session"
)

// Gateway is the conversation backend as seen by the client core.
// Every method fails with a *TransportError when the backend is unreachable or
// answers with a non-success status.
type Gateway interface {
	ListSessions(ctx context.Context) ([]session.Session, error)
	GetSessionHistory(ctx context.Context, sessionID string) (*HistoryResponse, error)
	SendMessage(ctx context.Context, req *SendRequest) (*SendResponse, error)
	CreateSession(ctx context.Context, model string) (*CreateSessionResponse, error)
	ClearSession(ctx context.Context, sessionID string) error
	ClearAllSessions(ctx context.Context) error

	RenameSession(ctx context.Context, sessionID string, title string) error
	DeleteSession(ctx context.Context, sessionID string) error
	Health(ctx context.Context) error
	AllMessages(ctx context.Context) ([]SessionMessage, error)
}

type ListSessionsResponse struct {
	Sessions      []session.Session `json:"sessions"`
	TotalSessions int               `json:"total_sessions"`
}

type HistoryResponse struct {
	ConversationHistory history.Raw `json:"conversation_history"`
	SessionID           string      `json:"session_id,omitempty"`
	Model               string      `json:"model,omitempty"`
	Title               string      `json:"title,omitempty"`
	TotalExchanges      int         `json:"total_exchanges"`
}

// SendRequest carries one user turn. An empty SessionID asks the backend to
// allocate a new session.
type SendRequest struct {
	Message         string                 `json:"message"`
	Model           string                 `json:"model"`
	MaxTokens       int                    `json:"maxTokens"`
	EnableStreaming bool                   `json:"enableStreaming"`
	Messages        []conversation.Message `json:"messages"`
	SessionID       string                 `json:"sessionId,omitempty"`
}

type SendResponse struct {
	Response     string  `json:"response"`
	ResponseTime float64 `json:"responseTime"`
	Timestamp    string  `json:"timestamp"`
	SessionID    string  `json:"sessionId"`
	Model        string  `json:"model"`
}

type CreateSessionRequest struct {
	Model string `json:"model"`
	Title string `json:"title,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
	Model     string `json:"model"`
	Title     string `json:"title"`
}

type RenameSessionRequest struct {
	Title string `json:"title"`
}

// SessionMessage is one entry of the cross-session message dump.
type SessionMessage struct {
	SessionID string            `json:"session_id"`
	Role      conversation.Role `json:"role"`
	Content   string            `json:"content"`
}

type AllMessagesResponse struct {
	AllMessages []SessionMessage `json:"all_messages"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ackResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
