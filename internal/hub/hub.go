package hub

import (
	"sync"
	"time"

	"chatverse/internal/config"
	"chatverse/pkg/logger"
)

// Hub - реестр живых соединений. Отслеживает каналы пользователей и подписки
// на топики переписок, маршрутизирует события диспетчера. Доставка best-effort:
// отключенный канал просто пропускается, медленный - отключается.
type Hub struct {
	mu sync.RWMutex
	// Каналы пользователя (несколько устройств - несколько клиентов)
	users map[int64]map[*Client]struct{}
	// Подписчики топика (ключ переписки или служебный топик)
	topics map[string]map[*Client]struct{}
	// Топики, на которые подписан клиент (для отписки при отключении)
	subscriptions map[*Client]map[string]struct{}

	sendTimeout time.Duration
	log         logger.Logger
}

func New(cfg config.HubConfig, log logger.Logger) *Hub {
	return &Hub{
		users:         make(map[int64]map[*Client]struct{}),
		topics:        make(map[string]map[*Client]struct{}),
		subscriptions: make(map[*Client]map[string]struct{}),
		sendTimeout:   cfg.SendTimeout,
		log:           log,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.users[client.UserID] == nil {
		h.users[client.UserID] = make(map[*Client]struct{})
	}
	h.users[client.UserID][client] = struct{}{}
	h.log.Debug("Client registered", "user_id", client.UserID)
}

// Unregister снимает все подписки клиента и помечает его закрытым.
// Повторный вызов безопасен.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	if clients, ok := h.users[client.UserID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.users, client.UserID)
		}
	}

	for topic := range h.subscriptions[client] {
		if subscribers, ok := h.topics[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	delete(h.subscriptions, client)

	client.Close()
	h.log.Debug("Client unregistered", "user_id", client.UserID)
}

func (h *Hub) Subscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][client] = struct{}{}

	if h.subscriptions[client] == nil {
		h.subscriptions[client] = make(map[string]struct{})
	}
	h.subscriptions[client][topic] = struct{}{}
}

func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.topics[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.topics, topic)
		}
	}
	if topics, ok := h.subscriptions[client]; ok {
		delete(topics, topic)
	}
}

// PublishToConversation доставляет событие всем подписчикам топика переписки.
func (h *Hub) PublishToConversation(conversationKey string, event *Event) {
	h.publish(h.topicSnapshot(conversationKey), event)
}

// PublishToUser доставляет событие на все каналы пользователя независимо
// от подписок - уведомление о новом сообщении в еще не открытом чате.
func (h *Hub) PublishToUser(userID int64, event *Event) {
	h.publish(h.userSnapshot(userID), event)
}

// PublishToTopic доставляет событие в произвольный служебный топик
// (например, присутствие).
func (h *Hub) PublishToTopic(topic string, event *Event) {
	h.publish(h.topicSnapshot(topic), event)
}

// IsConnected сообщает, есть ли у пользователя хотя бы один живой канал.
func (h *Hub) IsConnected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

func (h *Hub) topicSnapshot(topic string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subscribers := h.topics[topic]
	clients := make([]*Client, 0, len(subscribers))
	for c := range subscribers {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) userSnapshot(userID int64) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	registered := h.users[userID]
	clients := make([]*Client, 0, len(registered))
	for c := range registered {
		clients = append(clients, c)
	}
	return clients
}

// publish раздает событие без удержания блокировки, чтобы медленный канал
// не останавливал ни другие доставки, ни коммит диспетчера.
func (h *Hub) publish(clients []*Client, event *Event) {
	for _, client := range clients {
		if !client.Notify(event, h.sendTimeout) {
			h.log.Warn("Dropping unresponsive client channel", "user_id", client.UserID)
			h.Unregister(client)
		}
	}
}
