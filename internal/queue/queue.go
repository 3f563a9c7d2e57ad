package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"chatverse/internal/config"
	"chatverse/internal/domain"
	apperrors "chatverse/pkg/errors"
	"chatverse/pkg/logger"
)

// Producer ставит сообщение в очередь доставки. Вызов возвращается после
// подтверждения брокером; дальнейшая обработка асинхронна.
type Producer interface {
	Enqueue(ctx context.Context, conversationKey string, msg *domain.ChatMessage) error
}

// Handler обрабатывает одну запись очереди. Ошибка приводит к повторной
// попытке на месте: партиция не переходит к следующей записи, пока текущая
// не обработана или не исчерпала лимит попыток.
type Handler interface {
	Handle(ctx context.Context, entry *Entry) error
}

// Queue - брокер доставки поверх Redis Streams. Стрим на партицию,
// партиция выбирается по ключу переписки, потребители объединены в группу.
type Queue struct {
	rdb *redis.Client
	cfg config.QueueConfig
	log logger.Logger
}

func New(rdb *redis.Client, cfg config.QueueConfig, log logger.Logger) *Queue {
	return &Queue{rdb: rdb, cfg: cfg, log: log}
}

func (q *Queue) streamName(partition int) string {
	return fmt.Sprintf("%s:%d", q.cfg.StreamPrefix, partition)
}

func (q *Queue) deadLetterStream() string {
	return q.cfg.StreamPrefix + ":dead-letter"
}

func (q *Queue) Enqueue(ctx context.Context, conversationKey string, msg *domain.ChatMessage) error {
	values, err := encodeEntry(msg)
	if err != nil {
		return err
	}

	partition := PartitionFor(conversationKey, q.cfg.Partitions)
	stream := q.streamName(partition)

	id, err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		q.log.Error("Failed to enqueue message", "error", err, "stream", stream, "message_id", msg.MessageID)
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	q.log.Debug("Message enqueued", "message_id", msg.MessageID, "stream", stream, "stream_id", id)
	return nil
}

// Consume запускает по одному потребителю на партицию и блокируется до отмены
// контекста. Подтверждение записи происходит только после успешной обработки;
// упавшая обработка повторяется на месте, чтобы не нарушить порядок сообщений
// внутри переписки. PEL и XAUTOCLAIM покрывают только падение процесса.
func (q *Queue) Consume(ctx context.Context, handler Handler) error {
	if err := q.ensureGroups(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for p := 0; p < q.cfg.Partitions; p++ {
		wg.Add(1)
		go func(partition int) {
			defer wg.Done()
			q.consumePartition(ctx, partition, handler)
		}(p)
	}
	wg.Wait()
	return ctx.Err()
}

func (q *Queue) ensureGroups(ctx context.Context) error {
	for p := 0; p < q.cfg.Partitions; p++ {
		stream := q.streamName(p)
		err := q.rdb.XGroupCreateMkStream(ctx, stream, q.cfg.ConsumerGroup, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
		}
	}
	return nil
}

func (q *Queue) consumerName(partition int) string {
	return fmt.Sprintf("%s-%d", q.cfg.ConsumerName, partition)
}

func (q *Queue) consumePartition(ctx context.Context, partition int, handler Handler) {
	stream := q.streamName(partition)
	q.log.Info("Queue consumer started", "stream", stream, "group", q.cfg.ConsumerGroup)

	for {
		if ctx.Err() != nil {
			q.log.Info("Queue consumer stopped", "stream", stream)
			return
		}

		// Сначала забираем зависшие записи других (или своего прошлого)
		// потребителей - восстановление после падения процесса.
		q.claimStale(ctx, partition, handler)

		messages, err := q.readNew(ctx, partition)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.log.Error("Failed to read from stream", "error", err, "stream", stream)
			time.Sleep(time.Second)
			continue
		}

		for _, xmsg := range messages {
			// Первая доставка
			q.process(ctx, partition, handler, xmsg, 1)
		}
	}
}

func (q *Queue) readNew(ctx context.Context, partition int) ([]redis.XMessage, error) {
	stream := q.streamName(partition)

	res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.cfg.ConsumerGroup,
		Consumer: q.consumerName(partition),
		Streams:  []string{stream, ">"},
		Count:    int64(q.cfg.BatchSize),
		Block:    q.cfg.BlockTimeout,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var messages []redis.XMessage
	for _, s := range res {
		messages = append(messages, s.Messages...)
	}
	return messages, nil
}

// claimStale передоставляет записи, висящие в PEL дольше visibility timeout.
// Записи, исчерпавшие лимит попыток, уходят в dead-letter стрим.
func (q *Queue) claimStale(ctx context.Context, partition int, handler Handler) {
	stream := q.streamName(partition)

	claimed, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    q.cfg.ConsumerGroup,
		Consumer: q.consumerName(partition),
		MinIdle:  q.cfg.VisibilityTimeout,
		Start:    "0-0",
		Count:    int64(q.cfg.BatchSize),
	}).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			q.log.Error("Failed to claim stale entries", "error", err, "stream", stream)
		}
		return
	}

	if len(claimed) == 0 {
		return
	}

	attempts := q.retryCounts(ctx, partition, claimed)
	for _, xmsg := range claimed {
		attempt := attempts[xmsg.ID]
		if attempt == 0 {
			attempt = 1
		}
		if int(attempt) > q.cfg.MaxAttempts {
			q.deadLetter(ctx, partition, xmsg, attempt, apperrors.ErrDeliveryExhausted.Error())
			continue
		}
		q.process(ctx, partition, handler, xmsg, attempt)
	}
}

// retryCounts достает счетчики доставок из PEL для заявленных записей.
func (q *Queue) retryCounts(ctx context.Context, partition int, messages []redis.XMessage) map[string]int64 {
	counts := make(map[string]int64, len(messages))

	pending, err := q.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.streamName(partition),
		Group:  q.cfg.ConsumerGroup,
		Start:  messages[0].ID,
		End:    messages[len(messages)-1].ID,
		Count:  int64(len(messages)),
	}).Result()
	if err != nil {
		q.log.Warn("Failed to read pending entry info", "error", err, "partition", partition)
		return counts
	}

	for _, p := range pending {
		counts[p.ID] = p.RetryCount
	}
	return counts
}

// process доводит запись до исхода: успех с подтверждением либо dead-letter.
// Партиция переходит к следующей записи только после исхода текущей, иначе
// сообщения одной переписки поменяются местами.
func (q *Queue) process(ctx context.Context, partition int, handler Handler, xmsg redis.XMessage, attempt int64) {
	stream := q.streamName(partition)

	entry, err := decodeEntry(xmsg.ID, partition, attempt, xmsg.Values)
	if err != nil {
		// Нечитаемая запись не станет читаемой при повторе
		q.deadLetter(ctx, partition, xmsg, attempt, err.Error())
		return
	}

	for {
		entry.Attempt = attempt
		err := handler.Handle(ctx, entry)
		if err == nil {
			break
		}

		if int(attempt) >= q.cfg.MaxAttempts {
			q.deadLetter(ctx, partition, xmsg, attempt, err.Error())
			return
		}

		q.log.Error("Failed to process queue entry, retrying in place",
			"error", err, "stream", stream, "stream_id", xmsg.ID,
			"message_id", entry.Message.MessageID, "attempt", attempt)

		attempt++
		select {
		case <-ctx.Done():
			// Запись остается в PEL и будет передоставлена после рестарта
			return
		case <-time.After(q.cfg.RetryBackoff):
		}
	}

	if err := q.ack(ctx, stream, xmsg.ID); err != nil {
		// Подтверждение не прошло - запись будет передоставлена, обработка
		// обязана быть идемпотентной.
		q.log.Warn("Failed to ack processed entry", "error", err, "stream", stream, "stream_id", xmsg.ID)
	}
}

func (q *Queue) ack(ctx context.Context, stream, id string) error {
	return q.rdb.XAck(ctx, stream, q.cfg.ConsumerGroup, id).Err()
}

// deadLetter уводит запись в отдельный стрим для ручного разбора и
// подтверждает ее в исходном, чтобы не зациклить передоставку.
func (q *Queue) deadLetter(ctx context.Context, partition int, xmsg redis.XMessage, attempt int64, reason string) {
	stream := q.streamName(partition)

	values := map[string]interface{}{
		"origin_stream": stream,
		"origin_id":     xmsg.ID,
		"attempts":      attempt,
		"reason":        reason,
	}
	if payload, ok := xmsg.Values[fieldPayload]; ok {
		values[fieldPayload] = payload
	}
	if key, ok := xmsg.Values[fieldConversationKey]; ok {
		values[fieldConversationKey] = key
	}

	if err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.deadLetterStream(),
		Values: values,
	}).Err(); err != nil {
		q.log.Error("Failed to write dead-letter entry", "error", err, "stream", stream, "stream_id", xmsg.ID)
		// Оставляем запись в PEL - лучше бесконечная передоставка, чем потеря
		return
	}

	q.log.Error("Queue entry moved to dead-letter stream",
		"stream", stream, "stream_id", xmsg.ID, "attempts", attempt, "reason", reason)

	if err := q.ack(ctx, stream, xmsg.ID); err != nil {
		q.log.Warn("Failed to ack dead-lettered entry", "error", err, "stream", stream, "stream_id", xmsg.ID)
	}
}
