package models

import "time"

// DefaultSessionName is given to every freshly created chat session.
const DefaultSessionName = "New Session"

// ChatMessage is a single transcript entry.
type ChatMessage struct {
	Text   string `json:"text"`
	IsUser bool   `json:"isUser"`
}

// ChatSession is a conversation between a user (SenderID holds the npk) and
// the chatbot. Messages are append-only.
type ChatSession struct {
	SenderID string        `json:"sender_id"`
	ChatID   string        `json:"chat_id"`
	Name     string        `json:"name"`
	Messages []ChatMessage `json:"messages"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
