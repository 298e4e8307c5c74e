package models

import "time"

const LastMessageTextLimit = 500

type Conversation struct {
	ID              int64      `json:"id"`
	AdminID         int64      `json:"admin_id"`
	CounselorID     int64      `json:"counselor_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastMessageAt   *time.Time `json:"last_message_at"`
	LastMessageText *string    `json:"last_message_text"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID int64) bool {
	return c != nil && (c.AdminID == userID || c.CounselorID == userID)
}

type ChatMessage struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	ReceiverID     int64     `json:"receiver_id"`
	Text           string    `json:"text"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

type ConversationSummary struct {
	Conversation
	CounterpartID   int64  `json:"counterpart_id"`
	CounterpartName string `json:"counterpart_name"`
	UnreadCount     int    `json:"unread_count"`
}

// TruncateMessageText cuts text to LastMessageTextLimit runes.
func TruncateMessageText(text string) string {
	runes := []rune(text)
	if len(runes) <= LastMessageTextLimit {
		return text
	}
	return string(runes[:LastMessageTextLimit])
}
