package service

import (
	"context"

	"chatverse/internal/config"
	"chatverse/internal/repository"
	"chatverse/pkg/logger"
)

type RateLimitService interface {
	// Allow сообщает, укладывается ли ключ в лимит текущего окна.
	Allow(ctx context.Context, key string) (bool, error)
}

type rateLimitService struct {
	repo repository.RateLimitRepository
	cfg  config.RateLimitConfig
	log  logger.Logger
}

func NewRateLimitService(repo repository.RateLimitRepository, cfg config.RateLimitConfig, log logger.Logger) RateLimitService {
	return &rateLimitService{repo: repo, cfg: cfg, log: log}
}

func (s *rateLimitService) Allow(ctx context.Context, key string) (bool, error) {
	count, err := s.repo.Increment(ctx, key, s.cfg.Window)
	if err != nil {
		// Недоступность лимитера не должна ронять запросы
		s.log.Warn("Rate limiter unavailable, allowing request", "error", err, "key", key)
		return true, nil
	}
	return count <= int64(s.cfg.Requests), nil
}
