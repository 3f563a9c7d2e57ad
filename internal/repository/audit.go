package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"chatverse/internal/domain"
	"chatverse/pkg/logger"
)

type AuditRepository interface {
	CreateEntry(ctx context.Context, entry *domain.AuditEntry) error
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) CreateEntry(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_log (user_id, action, details, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		entry.UserID, entry.Action, entry.Details, entry.CreatedAt,
	).Scan(&entry.ID)

	if err != nil {
		r.log.Error("Failed to create audit entry", "error", err)
		return err
	}

	return nil
}
