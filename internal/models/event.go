package models

import "time"

const (
	EventTypeNewMessage = "new_message"
	EventTypePong       = "pong"
)

type PongEvent struct {
	Type string `json:"type"`
}

type MessagePayload struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	SenderID       int64  `json:"sender_id"`
	ReceiverID     int64  `json:"receiver_id"`
	Text           string `json:"text"`
	CreatedAt      string `json:"created_at"`
	IsRead         bool   `json:"is_read"`
}

type NewMessageEvent struct {
	Type    string         `json:"type"`
	Message MessagePayload `json:"message"`
}

func NewPongEvent() PongEvent {
	return PongEvent{Type: EventTypePong}
}

func NewMessageEventFrom(message *ChatMessage) NewMessageEvent {
	return NewMessageEvent{
		Type: EventTypeNewMessage,
		Message: MessagePayload{
			ID:             message.ID,
			ConversationID: message.ConversationID,
			SenderID:       message.SenderID,
			ReceiverID:     message.ReceiverID,
			Text:           message.Text,
			CreatedAt:      message.CreatedAt.UTC().Format(time.RFC3339Nano),
			IsRead:         message.IsRead,
		},
	}
}
