package queue

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	"chatverse/internal/domain"
)

// Имена полей записи в стриме.
const (
	fieldPayload         = "payload"
	fieldConversationKey = "conversation_key"
)

// Entry - конверт вокруг сообщения с метаданными доставки. Принадлежит
// очереди до подтверждения потребителем; из-за семантики at-least-once может
// быть доставлен более одного раза.
type Entry struct {
	// ID записи в стриме (аналог offset).
	StreamID        string
	Partition       int
	Attempt         int64
	ConversationKey string
	Message         *domain.ChatMessage
}

func encodeEntry(msg *domain.ChatMessage) (map[string]interface{}, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return map[string]interface{}{
		fieldPayload:         string(payload),
		fieldConversationKey: msg.ConversationKey,
	}, nil
}

func decodeEntry(streamID string, partition int, attempt int64, values map[string]interface{}) (*Entry, error) {
	raw, ok := values[fieldPayload].(string)
	if !ok {
		return nil, fmt.Errorf("entry %s has no payload field", streamID)
	}

	msg := &domain.ChatMessage{}
	if err := json.Unmarshal([]byte(raw), msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry %s: %w", streamID, err)
	}

	key, _ := values[fieldConversationKey].(string)
	if key == "" {
		key = msg.ConversationKey
	}

	return &Entry{
		StreamID:        streamID,
		Partition:       partition,
		Attempt:         attempt,
		ConversationKey: key,
		Message:         msg,
	}, nil
}

// PartitionFor детерминированно выбирает партицию по ключу переписки.
// Все сообщения одного ключа попадают в одну партицию, что гарантирует
// их последовательную обработку.
func PartitionFor(conversationKey string, partitions int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(conversationKey))
	return int(h.Sum32() % uint32(partitions))
}
