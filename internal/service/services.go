package service

import (
	"chatverse/internal/config"
	"chatverse/internal/queue"
	"chatverse/internal/repository"
	"chatverse/pkg/logger"
)

type Services struct {
	Auth      AuthService
	User      UserService
	Chat      ChatService
	Contact   ContactService
	RateLimit RateLimitService
}

func NewServices(repos *repository.Repositories, producer queue.Producer, cfg *config.Config, log logger.Logger) *Services {
	return &Services{
		Auth:      NewAuthService(repos.User, repos.Audit, cfg.JWT, log),
		User:      NewUserService(repos.User, log),
		Chat:      NewChatService(repos.User, repos.Message, repos.Contact, producer, log),
		Contact:   NewContactService(repos.Contact, repos.User, repos.Audit, log),
		RateLimit: NewRateLimitService(repos.RateLimit, cfg.RateLimit, log),
	}
}
