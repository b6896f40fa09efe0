package chat

import "time"

// Conversation binds a message log to the persona that answers in it.
type Conversation struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"personaId"`
	CreatedAt time.Time `json:"createdAt"`
}
