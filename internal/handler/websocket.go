package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chatverse/internal/config"
	"chatverse/internal/domain"
	"chatverse/internal/hub"
	"chatverse/internal/middleware"
	"chatverse/internal/service"
	"chatverse/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Служебный топик онлайн-статусов
	presenceTopic = "presence"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшене нужно проверять origin
	},
}

// Входящий кадр клиента. Оба пути отправки (REST и этот) сходятся
// в ChatService.Submit.
type inboundFrame struct {
	Type            string `json:"type"`
	RecipientID     int64  `json:"recipient_id,omitempty"`
	Content         string `json:"content,omitempty"`
	ConversationKey string `json:"conversation_key,omitempty"`
}

type WebSocketHandler struct {
	chatService service.ChatService
	connections *hub.Hub
	cfg         config.HubConfig
	log         logger.Logger
}

func NewWebSocketHandler(chatService service.ChatService, connections *hub.Hub, cfg config.HubConfig, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		chatService: chatService,
		connections: connections,
		cfg:         cfg,
		log:         log,
	}
}

func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := hub.NewClient(userID, h.cfg.ClientBuffer)
	h.connections.Register(client)
	h.publishPresence(userID, true)

	go h.writePump(conn, client)
	h.readPump(c, conn, client)
}

// readPump читает кадры клиента до разрыва соединения. По выходу соединение
// снимается с регистрации, все его подписки убираются.
func (h *WebSocketHandler) readPump(c *gin.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.connections.Unregister(client)
		h.publishPresence(client.UserID, false)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("WebSocket read failed", "error", err, "user_id", client.UserID)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.sendError(client, "malformed frame")
			continue
		}

		switch frame.Type {
		case "message":
			_, err := h.chatService.Submit(c.Request.Context(), client.UserID, frame.RecipientID, frame.Content)
			if err != nil {
				h.sendError(client, err.Error())
			}
		case "subscribe":
			if !h.canSubscribe(client.UserID, frame.ConversationKey) {
				h.sendError(client, "access to conversation denied")
				continue
			}
			h.connections.Subscribe(client, frame.ConversationKey)
		case "unsubscribe":
			h.connections.Unsubscribe(client, frame.ConversationKey)
		default:
			h.sendError(client, "unknown frame type")
		}
	}
}

// canSubscribe: на топик переписки подписываются только ее участники,
// топик присутствия открыт всем аутентифицированным.
func (h *WebSocketHandler) canSubscribe(userID int64, topic string) bool {
	if topic == presenceTopic {
		return true
	}
	isParticipant, err := domain.IsParticipant(topic, userID)
	return err == nil && isParticipant
}

func (h *WebSocketHandler) writePump(conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event := <-client.Events():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				h.log.Debug("WebSocket write failed", "error", err, "user_id", client.UserID)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}

// sendError уходит через канал клиента: писать в соединение может только
// write pump.
func (h *WebSocketHandler) sendError(client *hub.Client, message string) {
	client.Notify(&hub.Event{Type: hub.EventTypeError, Error: message}, h.cfg.SendTimeout)
}

func (h *WebSocketHandler) publishPresence(userID int64, online bool) {
	h.connections.PublishToTopic(presenceTopic, &hub.Event{
		Type: hub.EventTypeStatus,
		Status: &domain.UserStatusUpdate{
			UserID: userID,
			Online: online,
			At:     time.Now().UTC(),
		},
	})
}
