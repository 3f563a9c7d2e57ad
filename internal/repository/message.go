package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatverse/internal/domain"
	apperrors "chatverse/pkg/errors"
	"chatverse/pkg/logger"
)

// MessageRepository - журнал переписок, единственный долговременный источник
// истины. Append идемпотентен по message_id: повторная доставка той же записи
// из очереди не создает дубликат.
type MessageRepository interface {
	Append(ctx context.Context, message *domain.ChatMessage) (*domain.ChatMessage, error)
	GetByMessageID(ctx context.Context, messageID string) (*domain.ChatMessage, error)
	ReadConversation(ctx context.Context, conversationKey string) ([]*domain.ChatMessage, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

func (r *messageRepository) Append(ctx context.Context, message *domain.ChatMessage) (*domain.ChatMessage, error) {
	query := `
		INSERT INTO chat_messages (message_id, sender_id, recipient_id, conversation_key, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		message.MessageID, message.SenderID, message.RecipientID,
		message.ConversationKey, message.Content, message.CreatedAt,
	).Scan(&message.ID)

	if err == nil {
		return message, nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		// Конфликт по message_id - сообщение уже сохранено ранее.
		// Возвращаем сохраненную копию.
		stored, getErr := r.GetByMessageID(ctx, message.MessageID)
		if getErr != nil {
			return nil, getErr
		}
		return stored, nil
	}

	r.log.Error("Failed to append message", "error", err, "message_id", message.MessageID)
	return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
}

func (r *messageRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.ChatMessage, error) {
	query := `
		SELECT id, message_id, sender_id, recipient_id, conversation_key, content, created_at
		FROM chat_messages
		WHERE message_id = $1
	`

	message := &domain.ChatMessage{}
	err := r.db.QueryRow(ctx, query, messageID).Scan(
		&message.ID, &message.MessageID, &message.SenderID, &message.RecipientID,
		&message.ConversationKey, &message.Content, &message.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to get message", "error", err, "message_id", messageID)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	return message, nil
}

func (r *messageRepository) ReadConversation(ctx context.Context, conversationKey string) ([]*domain.ChatMessage, error) {
	// Порядок (created_at, id) - единственная гарантия консистентности,
	// которую получают клиенты: id разрешает равные метки времени порядком
	// записи в журнал.
	query := `
		SELECT id, message_id, sender_id, recipient_id, conversation_key, content, created_at
		FROM chat_messages
		WHERE conversation_key = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, conversationKey)
	if err != nil {
		r.log.Error("Failed to read conversation", "error", err, "conversation_key", conversationKey)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var messages []*domain.ChatMessage
	for rows.Next() {
		message := &domain.ChatMessage{}
		err := rows.Scan(
			&message.ID, &message.MessageID, &message.SenderID, &message.RecipientID,
			&message.ConversationKey, &message.Content, &message.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	return messages, nil
}
