package models

import (
	"time"

	"github.com/google/uuid"
)

// User owns credentials and an append-only chat history.
// Deleting a user cascades to both (enforced by foreign keys).
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
