package conversation

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Valid reports whether r is one of the roles a timeline can hold.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleAssistant, RoleUser:
		return true
	}
	return false
}

// Message is one turn in a conversation.
//
// Timestamp is a display string as handed out by the backend (or produced locally for
// optimistic messages), not a parsed time. ResponseTime is only known for assistant
// replies that were produced during this client's lifetime.
type Message struct {
	Role         Role     `json:"role"`
	Content      string   `json:"content"`
	Timestamp    string   `json:"timestamp,omitempty"`
	ResponseTime *float64 `json:"responseTime,omitempty"`
}

type MessageOption func(*Message)

func WithTimestamp(ts string) MessageOption {
	return func(m *Message) {
		m.Timestamp = ts
	}
}

func WithResponseTime(seconds float64) MessageOption {
	return func(m *Message) {
		m.ResponseTime = &seconds
	}
}

func NewMessage(role Role, content string, options ...MessageOption) Message {
	ret := Message{
		Role:    role,
		Content: content,
	}
	for _, option := range options {
		option(&ret)
	}
	return ret
}

func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a locally-constructed user message stamped with the current
// wall clock time, the way the chat window displays it.
func NewUserMessage(content string, now time.Time) Message {
	return NewMessage(RoleUser, content, WithTimestamp(FormatTimestamp(now)))
}

// FormatTimestamp renders t as the short clock string used for locally created messages.
func FormatTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

func (m Message) View() string {
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Content, "\n"))
}

func (m Message) Clone() Message {
	ret := m
	if m.ResponseTime != nil {
		rt := *m.ResponseTime
		ret.ResponseTime = &rt
	}
	return ret
}
