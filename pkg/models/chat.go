package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

// MessagePayload is the structured content of a chat message. A payload must
// never be empty: user messages carry Text, assistant messages carry at least
// Text or SQL.
type MessagePayload struct {
	Text     string           `json:"text,omitempty"`
	SQL      string           `json:"sql,omitempty"`
	Columns  []string         `json:"columns,omitempty"`
	Rows     []map[string]any `json:"rows,omitempty"`
	RowCount int              `json:"row_count,omitempty"`
	Error    string           `json:"error,omitempty"`
	Attempts []QueryAttempt   `json:"attempts,omitempty"`
}

// IsEmpty reports whether the payload carries no content at all.
func (p *MessagePayload) IsEmpty() bool {
	return p.Text == "" && p.SQL == "" && len(p.Rows) == 0 && p.Error == "" && len(p.Attempts) == 0
}

// ChatMessage is one entry in a user's append-only conversation log,
// ordered by CreatedAt. Messages are never edited in place.
type ChatMessage struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Role      ChatRole       `json:"role"`
	Payload   MessagePayload `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// QueryAttempt records one pass through the generate/guard/execute loop.
// Attempts live only for the duration of a turn and are folded into the
// final assistant message.
type QueryAttempt struct {
	Index     int    `json:"index"`
	Statement string `json:"statement"`
	Verdict   string `json:"verdict"`
	Error     string `json:"error,omitempty"`
}
