package handler

import (
	"chatverse/internal/config"
	"chatverse/internal/hub"
	"chatverse/internal/service"
	"chatverse/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	User      *UserHandler
	Chat      *ChatHandler
	Contact   *ContactHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, connections *hub.Hub, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(cfg),
		Auth:      NewAuthHandler(services.Auth, log),
		User:      NewUserHandler(services.User, log),
		Chat:      NewChatHandler(services.Chat, log),
		Contact:   NewContactHandler(services.Contact, log),
		WebSocket: NewWebSocketHandler(services.Chat, connections, cfg.Hub, log),
	}
}
