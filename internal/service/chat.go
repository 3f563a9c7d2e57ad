package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatverse/internal/domain"
	"chatverse/internal/queue"
	"chatverse/internal/repository"
	apperrors "chatverse/pkg/errors"
	"chatverse/pkg/logger"
)

// ChatService - единая точка входа отправки сообщений (REST и WebSocket)
// и чтения истории.
type ChatService interface {
	// Submit валидирует и ставит сообщение в очередь доставки. Успешный
	// возврат означает "надежно поставлено в очередь", не "доставлено".
	Submit(ctx context.Context, senderID, recipientID int64, content string) (*domain.ChatMessage, error)
	// GetHistory возвращает упорядоченную историю переписки. Запрашивающий
	// обязан быть одним из двух участников ключа.
	GetHistory(ctx context.Context, conversationKey string, requestingUserID int64) ([]*domain.ChatMessage, error)
}

type chatService struct {
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	contactRepo repository.ContactRepository
	producer    queue.Producer
	log         logger.Logger
}

func NewChatService(
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	contactRepo repository.ContactRepository,
	producer queue.Producer,
	log logger.Logger,
) ChatService {
	return &chatService{
		userRepo:    userRepo,
		messageRepo: messageRepo,
		contactRepo: contactRepo,
		producer:    producer,
		log:         log,
	}
}

func (s *chatService) Submit(ctx context.Context, senderID, recipientID int64, content string) (*domain.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is empty", apperrors.ErrBadRequest)
	}

	conversationKey, err := domain.ResolveConversationKey(senderID, recipientID)
	if err != nil {
		return nil, err
	}

	exists, err := s.userRepo.Exists(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate recipient: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %d", apperrors.ErrRecipientNotFound, recipientID)
	}

	// Заблокированная пара не переписывается
	contact, err := s.contactRepo.GetByPair(ctx, senderID, recipientID)
	if err != nil && !errors.Is(err, apperrors.ErrContactNotFound) {
		return nil, fmt.Errorf("failed to check contact status: %w", err)
	}
	if contact != nil && contact.Status == domain.ContactStatusBlocked {
		return nil, apperrors.ErrContactBlocked
	}

	message := domain.NewChatMessage(senderID, recipientID, conversationKey, content)

	if err := s.producer.Enqueue(ctx, conversationKey, message); err != nil {
		return nil, err
	}

	s.log.Info("Message accepted",
		"message_id", message.MessageID, "conversation_key", conversationKey, "sender_id", senderID)
	return message, nil
}

func (s *chatService) GetHistory(ctx context.Context, conversationKey string, requestingUserID int64) ([]*domain.ChatMessage, error) {
	isParticipant, err := domain.IsParticipant(conversationKey, requestingUserID)
	if err != nil {
		// Некорректный ключ не раскрываем - для клиента это запрет доступа
		return nil, fmt.Errorf("%w: invalid conversation key", apperrors.ErrAccessDenied)
	}
	if !isParticipant {
		s.log.Warn("History access denied", "conversation_key", conversationKey, "user_id", requestingUserID)
		return nil, apperrors.ErrAccessDenied
	}

	return s.messageRepo.ReadConversation(ctx, conversationKey)
}
