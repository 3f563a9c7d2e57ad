package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"chatverse/internal/domain"
	"chatverse/internal/hub"
	"chatverse/internal/queue"
	"chatverse/internal/repository"
	apperrors "chatverse/pkg/errors"
	"chatverse/pkg/logger"
)

// Broadcaster - срез реестра соединений, нужный диспетчеру.
type Broadcaster interface {
	PublishToConversation(conversationKey string, event *hub.Event)
	PublishToUser(userID int64, event *hub.Event)
}

// Dispatcher обрабатывает записи очереди доставки: дедупликация по message_id,
// запись в журнал, рассылка в топик переписки и в личный канал получателя.
// Подтверждение записи происходит в очереди только после возврата без ошибки,
// поэтому падение на любом шаге приводит к передоставке, а не к потере.
type Dispatcher struct {
	messages repository.MessageRepository
	hub      Broadcaster
	log      logger.Logger
}

func New(messages repository.MessageRepository, broadcaster Broadcaster, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		messages: messages,
		hub:      broadcaster,
		log:      log,
	}
}

// Handle реализует queue.Handler.
func (d *Dispatcher) Handle(ctx context.Context, entry *queue.Entry) error {
	msg := entry.Message
	if msg == nil || msg.MessageID == "" {
		return fmt.Errorf("queue entry %s carries no message", entry.StreamID)
	}

	// Повторная доставка уже сохраненного сообщения - штатная ситуация
	// at-least-once. Append идемпотентен и возвращает сохраненную копию,
	// поэтому повтор лишь дублирует push, что допустимо.
	stored, err := d.messages.GetByMessageID(ctx, msg.MessageID)
	switch {
	case err == nil:
		d.log.Debug("Message already persisted, re-broadcasting", "message_id", msg.MessageID, "attempt", entry.Attempt)
	case errors.Is(err, apperrors.ErrNotFound):
		stored, err = d.messages.Append(ctx, msg)
		if err != nil {
			return fmt.Errorf("failed to persist message %s: %w", msg.MessageID, err)
		}
		d.log.Info("Message persisted",
			"message_id", stored.MessageID, "conversation_key", stored.ConversationKey,
			"stream_id", entry.StreamID, "partition", entry.Partition)
	default:
		return fmt.Errorf("failed to check message %s: %w", msg.MessageID, err)
	}

	d.broadcast(stored)
	return nil
}

// broadcast выполняет рассылку после сохранения. Push best-effort: отсутствие
// живых каналов у получателя не ошибка, он увидит сообщение при чтении истории.
func (d *Dispatcher) broadcast(msg *domain.ChatMessage) {
	event := &hub.Event{Type: hub.EventTypeMessage, Message: msg}

	// Топик переписки - все открытые окна этого диалога
	d.hub.PublishToConversation(msg.ConversationKey, event)

	// Личный канал получателя - уведомление о сообщении в чате,
	// на который он не подписан
	d.hub.PublishToUser(msg.RecipientID, event)
}
