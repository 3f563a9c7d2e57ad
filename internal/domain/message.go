package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage - неизменяемая запись сообщения. Создается при отправке,
// ровно один раз сохраняется диспетчером в журнал переписки.
type ChatMessage struct {
	ID              int64     `json:"-"`
	MessageID       string    `json:"message_id"`
	SenderID        int64     `json:"sender_id"`
	RecipientID     int64     `json:"recipient_id"`
	ConversationKey string    `json:"conversation_key"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewChatMessage собирает сообщение с серверным ID и временем отправки.
func NewChatMessage(senderID, recipientID int64, conversationKey, content string) *ChatMessage {
	return &ChatMessage{
		MessageID:       uuid.NewString(),
		SenderID:        senderID,
		RecipientID:     recipientID,
		ConversationKey: conversationKey,
		Content:         content,
		CreatedAt:       time.Now().UTC(),
	}
}

// UserStatusUpdate - событие смены онлайн-статуса. Публикуется в отдельный
// топик присутствия и не участвует в доставке сообщений.
type UserStatusUpdate struct {
	UserID int64     `json:"user_id"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}
