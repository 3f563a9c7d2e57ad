package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"chatverse/internal/config"
	"chatverse/internal/domain"
	apperrors "chatverse/pkg/errors"
	"chatverse/pkg/logger"
)

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		StreamPrefix:      "chat:messages",
		Partitions:        1,
		ConsumerGroup:     "chatverse-dispatcher",
		ConsumerName:      "test",
		MaxAttempts:       5,
		VisibilityTimeout: 30 * time.Second,
		RetryBackoff:      time.Millisecond,
		BlockTimeout:      20 * time.Millisecond,
		BatchSize:         16,
	}
}

func newTestQueue(t *testing.T, cfg config.QueueConfig) (*Queue, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, cfg, logger.NewNop()), mr, rdb
}

// scriptedHandler проваливает заданное число обработок каждого сообщения
// и закрывает done после want успехов.
type scriptedHandler struct {
	mu        sync.Mutex
	failures  map[string]int
	calls     []string
	succeeded []string
	want      int
	done      chan struct{}
}

func newScriptedHandler(want int) *scriptedHandler {
	return &scriptedHandler{
		failures: map[string]int{},
		want:     want,
		done:     make(chan struct{}),
	}
}

func (h *scriptedHandler) Handle(_ context.Context, entry *Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := entry.Message.MessageID
	h.calls = append(h.calls, id)
	if h.failures[id] > 0 {
		h.failures[id]--
		return apperrors.ErrStorageUnavailable
	}
	h.succeeded = append(h.succeeded, id)
	if len(h.succeeded) == h.want {
		close(h.done)
	}
	return nil
}

func (h *scriptedHandler) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *scriptedHandler) Succeeded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.succeeded...)
}

func startConsumer(t *testing.T, q *Queue, handler Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = q.Consume(ctx, handler) }()
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not finish in time")
	}
}

func TestQueue_OrderPreservedAcrossRetry(t *testing.T) {
	q, _, rdb := newTestQueue(t, testQueueConfig())
	ctx := context.Background()

	first := domain.NewChatMessage(7, 42, "7_42", "первое")
	second := domain.NewChatMessage(7, 42, "7_42", "второе")
	require.NoError(t, q.Enqueue(ctx, "7_42", first))
	require.NoError(t, q.Enqueue(ctx, "7_42", second))

	handler := newScriptedHandler(2)
	handler.failures[first.MessageID] = 1

	startConsumer(t, q, handler)
	waitDone(t, handler.done)

	// Упавшая запись повторяется на месте: второе сообщение не обгоняет первое
	require.Equal(t, []string{first.MessageID, second.MessageID}, handler.Succeeded())
	require.Equal(t, []string{first.MessageID, first.MessageID, second.MessageID}, handler.Calls())

	pending, err := rdb.XPending(ctx, q.streamName(0), q.cfg.ConsumerGroup).Result()
	require.NoError(t, err)
	require.Zero(t, pending.Count)
}

func TestQueue_ExhaustedEntryDeadLettered(t *testing.T) {
	cfg := testQueueConfig()
	cfg.MaxAttempts = 2
	q, _, rdb := newTestQueue(t, cfg)
	ctx := context.Background()

	poison := domain.NewChatMessage(7, 42, "7_42", "ядовитое")
	healthy := domain.NewChatMessage(7, 42, "7_42", "обычное")
	require.NoError(t, q.Enqueue(ctx, "7_42", poison))
	require.NoError(t, q.Enqueue(ctx, "7_42", healthy))

	handler := newScriptedHandler(1)
	handler.failures[poison.MessageID] = 100

	startConsumer(t, q, handler)
	waitDone(t, handler.done)

	// Ровно MaxAttempts попыток, затем партиция идет дальше
	require.Equal(t, []string{poison.MessageID, poison.MessageID, healthy.MessageID}, handler.Calls())
	require.Equal(t, []string{healthy.MessageID}, handler.Succeeded())

	entries, err := rdb.XRange(ctx, q.deadLetterStream(), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, q.streamName(0), entries[0].Values["origin_stream"])
	require.Equal(t, "2", entries[0].Values["attempts"])
	require.Equal(t, apperrors.ErrStorageUnavailable.Error(), entries[0].Values["reason"])
	require.Contains(t, entries[0].Values, fieldPayload)

	// Исходная запись подтверждена, передоставки не будет
	pending, err := rdb.XPending(ctx, q.streamName(0), q.cfg.ConsumerGroup).Result()
	require.NoError(t, err)
	require.Zero(t, pending.Count)
}

func TestQueue_UndecodableEntryDeadLettered(t *testing.T) {
	q, _, rdb := newTestQueue(t, testQueueConfig())
	ctx := context.Background()

	require.NoError(t, rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamName(0),
		Values: map[string]interface{}{
			fieldPayload:         "{не json",
			fieldConversationKey: "7_42",
		},
	}).Err())

	handler := newScriptedHandler(1)
	startConsumer(t, q, handler)

	require.Eventually(t, func() bool {
		n, err := rdb.XLen(ctx, q.deadLetterStream()).Result()
		if err != nil || n != 1 {
			return false
		}
		pending, err := rdb.XPending(ctx, q.streamName(0), q.cfg.ConsumerGroup).Result()
		return err == nil && pending.Count == 0
	}, 5*time.Second, 10*time.Millisecond)

	// До обработчика нечитаемая запись не доходит
	require.Empty(t, handler.Calls())
}

func TestQueue_ReclaimsAbandonedEntry(t *testing.T) {
	cfg := testQueueConfig()
	q, mr, rdb := newTestQueue(t, cfg)
	ctx := context.Background()

	msg := domain.NewChatMessage(7, 42, "7_42", "застрявшее")
	require.NoError(t, q.Enqueue(ctx, "7_42", msg))

	// Упавший потребитель: прочитал запись и умер, не подтвердив
	require.NoError(t, rdb.XGroupCreateMkStream(ctx, q.streamName(0), cfg.ConsumerGroup, "0").Err())
	_, err := rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    cfg.ConsumerGroup,
		Consumer: "dead-consumer",
		Streams:  []string{q.streamName(0), ">"},
		Count:    1,
	}).Result()
	require.NoError(t, err)

	// miniredis FastForward двигает только TTL ключей, а не часы сервера,
	// по которым XAUTOCLAIM считает idle; сдвигаем часы через SetTime.
	mr.SetTime(time.Now().UTC().Add(cfg.VisibilityTimeout + time.Second))

	handler := newScriptedHandler(1)
	startConsumer(t, q, handler)
	waitDone(t, handler.done)

	require.Equal(t, []string{msg.MessageID}, handler.Succeeded())

	pending, err := rdb.XPending(ctx, q.streamName(0), cfg.ConsumerGroup).Result()
	require.NoError(t, err)
	require.Zero(t, pending.Count)
}
