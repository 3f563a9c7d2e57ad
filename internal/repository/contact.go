package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatverse/internal/domain"
	apperrors "chatverse/pkg/errors"
	"chatverse/pkg/logger"
)

type ContactRepository interface {
	Create(ctx context.Context, contact *domain.Contact) error
	GetByPair(ctx context.Context, userOneID, userTwoID int64) (*domain.Contact, error)
	UpdateStatus(ctx context.Context, contactID int64, status domain.ContactStatus, actionUserID int64) error
	Delete(ctx context.Context, contactID int64) error
	ListByUserAndStatus(ctx context.Context, userID int64, status domain.ContactStatus) ([]*domain.Contact, error)
	ListPending(ctx context.Context, userID int64, incoming bool) ([]*domain.Contact, error)
}

type contactRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewContactRepository(db *pgxpool.Pool, log logger.Logger) ContactRepository {
	return &contactRepository{db: db, log: log}
}

func (r *contactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	query := `
		INSERT INTO contacts (user_one_id, user_two_id, status, action_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		contact.UserOneID, contact.UserTwoID, contact.Status, contact.ActionUserID,
		contact.CreatedAt, contact.UpdatedAt,
	).Scan(&contact.ID, &contact.CreatedAt, &contact.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrContactAlreadyExists
		}
		r.log.Error("Failed to create contact", "error", err)
		return fmt.Errorf("failed to create contact: %w", err)
	}

	return nil
}

// GetByPair ищет связь пары. Порядок аргументов не важен - пара хранится
// канонически (меньший id первым).
func (r *contactRepository) GetByPair(ctx context.Context, userOneID, userTwoID int64) (*domain.Contact, error) {
	if userOneID > userTwoID {
		userOneID, userTwoID = userTwoID, userOneID
	}

	query := `
		SELECT id, user_one_id, user_two_id, status, action_user_id, created_at, updated_at
		FROM contacts
		WHERE user_one_id = $1 AND user_two_id = $2
	`

	contact := &domain.Contact{}
	err := r.db.QueryRow(ctx, query, userOneID, userTwoID).Scan(
		&contact.ID, &contact.UserOneID, &contact.UserTwoID,
		&contact.Status, &contact.ActionUserID, &contact.CreatedAt, &contact.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrContactNotFound
		}
		r.log.Error("Failed to get contact", "error", err)
		return nil, err
	}

	return contact, nil
}

func (r *contactRepository) UpdateStatus(ctx context.Context, contactID int64, status domain.ContactStatus, actionUserID int64) error {
	query := `
		UPDATE contacts
		SET status = $2, action_user_id = $3, updated_at = $4
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, contactID, status, actionUserID, time.Now())
	if err != nil {
		r.log.Error("Failed to update contact status", "error", err, "contact_id", contactID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrContactNotFound
	}
	return nil
}

func (r *contactRepository) Delete(ctx context.Context, contactID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, contactID)
	if err != nil {
		r.log.Error("Failed to delete contact", "error", err, "contact_id", contactID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrContactNotFound
	}
	return nil
}

func (r *contactRepository) ListByUserAndStatus(ctx context.Context, userID int64, status domain.ContactStatus) ([]*domain.Contact, error) {
	query := `
		SELECT id, user_one_id, user_two_id, status, action_user_id, created_at, updated_at
		FROM contacts
		WHERE (user_one_id = $1 OR user_two_id = $1) AND status = $2
		ORDER BY updated_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID, status)
	if err != nil {
		r.log.Error("Failed to list contacts", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	return r.scanContacts(rows)
}

// ListPending возвращает входящие (incoming=true) или исходящие ожидающие
// запросы: входящие - инициатор не сам пользователь.
func (r *contactRepository) ListPending(ctx context.Context, userID int64, incoming bool) ([]*domain.Contact, error) {
	var query string
	if incoming {
		query = `
			SELECT id, user_one_id, user_two_id, status, action_user_id, created_at, updated_at
			FROM contacts
			WHERE (user_one_id = $1 OR user_two_id = $1) AND status = $2 AND action_user_id <> $1
			ORDER BY created_at DESC
		`
	} else {
		query = `
			SELECT id, user_one_id, user_two_id, status, action_user_id, created_at, updated_at
			FROM contacts
			WHERE status = $2 AND action_user_id = $1
			ORDER BY created_at DESC
		`
	}

	rows, err := r.db.Query(ctx, query, userID, domain.ContactStatusPending)
	if err != nil {
		r.log.Error("Failed to list pending requests", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	return r.scanContacts(rows)
}

func (r *contactRepository) scanContacts(rows pgx.Rows) ([]*domain.Contact, error) {
	var contacts []*domain.Contact
	for rows.Next() {
		contact := &domain.Contact{}
		err := rows.Scan(
			&contact.ID, &contact.UserOneID, &contact.UserTwoID,
			&contact.Status, &contact.ActionUserID, &contact.CreatedAt, &contact.UpdatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan contact", "error", err)
			return nil, err
		}
		contacts = append(contacts, contact)
	}
	return contacts, rows.Err()
}
