package session

import "unicode/utf8"

// DefaultTitle is shown for sessions the registry has not seen yet.
const DefaultTitle = "New Chat"

// Session is a server-side conversation as listed by the backend.
type Session struct {
	SessionID     string `json:"session_id"`
	Title         string `json:"title,omitempty"`
	Model         string `json:"model"`
	Preview       string `json:"preview"`
	ExchangeCount int    `json:"exchange_count"`
	LastUpdated   string `json:"last_updated"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// ShortPreview truncates the preview to maxLength runes, adding "..." when cut.
func (s Session) ShortPreview(maxLength int) string {
	return Truncate(s.Preview, maxLength)
}

func Truncate(text string, maxLength int) string {
	if maxLength <= 0 || utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	return string([]rune(text)[:maxLength]) + "..."
}
