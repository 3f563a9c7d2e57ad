package hub

import (
	"sync"
	"time"

	"chatverse/internal/domain"
)

// Тип события, доставляемого в живое соединение.
const (
	EventTypeMessage = "message"
	EventTypeStatus  = "status"
	EventTypeError   = "error"
)

// Event - конверт для отправки в канал клиента.
type Event struct {
	Type    string                   `json:"type"`
	Message *domain.ChatMessage      `json:"message,omitempty"`
	Status  *domain.UserStatusUpdate `json:"status,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

// Client - одно живое соединение пользователя. У пользователя может быть
// несколько клиентов (устройства, вкладки).
type Client struct {
	UserID int64

	send      chan *Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(userID int64, buffer int) *Client {
	return &Client{
		UserID: userID,
		send:   make(chan *Event, buffer),
		done:   make(chan struct{}),
	}
}

// Events - канал исходящих событий для write pump соединения.
func (c *Client) Events() <-chan *Event {
	return c.send
}

// Done закрывается при отключении клиента.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close помечает клиента отключенным. Сам канал send не закрывается,
// чтобы гонка publish/close не приводила к панике.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Notify пытается доставить событие в пределах timeout. false означает, что
// клиент закрыт или не вычитывает буфер.
func (c *Client) Notify(event *Event, timeout time.Duration) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.send <- event:
		return true
	case <-c.done:
		return false
	case <-timer.C:
		return false
	}
}
