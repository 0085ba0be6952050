package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is the persisted chat record. Immutable once written; the copy
// broadcast over the gateway is the same record the store returned.
type Message struct {
	ID          uuid.UUID `json:"id"`
	GroupID     int       `json:"group_id"`
	SenderID    int       `json:"sender_id"`
	Text        string    `json:"text"`
	Attachments []string  `json:"attachments"`
	CreatedAt   time.Time `json:"created_at"`
}

type SendMessageRequest struct {
	Text        string   `json:"text" validate:"required,max=500"`
	Attachments []string `json:"attachments"`
}

type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// HasMore reports whether older history remains past the current page.
func (p Pagination) HasMore() bool {
	return p.Page < p.Pages
}

type MessageHistory struct {
	Messages   []*Message `json:"messages"`
	Pagination Pagination `json:"pagination"`
}
