package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatverse/internal/domain"
	"chatverse/internal/repository"
	apperrors "chatverse/pkg/errors"
	"chatverse/pkg/logger"
)

// ContactService - граф контактов: запрос, принятие/отклонение, удаление,
// блокировка. Алгоритмически это простая машина статусов поверх пары
// пользователей; она не участвует в конвейере доставки, кроме проверки
// блокировки при отправке.
type ContactService interface {
	SendRequest(ctx context.Context, requesterID, targetID int64) error
	Respond(ctx context.Context, currentUserID, otherUserID int64, accept bool) error
	Remove(ctx context.Context, currentUserID, contactUserID int64) error
	Block(ctx context.Context, currentUserID, targetID int64) error
	ListContacts(ctx context.Context, userID int64) ([]*domain.Contact, error)
	ListPending(ctx context.Context, userID int64, incoming bool) ([]*domain.Contact, error)
}

type contactService struct {
	contactRepo repository.ContactRepository
	userRepo    repository.UserRepository
	auditRepo   repository.AuditRepository
	log         logger.Logger
}

func NewContactService(contactRepo repository.ContactRepository, userRepo repository.UserRepository, auditRepo repository.AuditRepository, log logger.Logger) ContactService {
	return &contactService{
		contactRepo: contactRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		log:         log,
	}
}

func (s *contactService) SendRequest(ctx context.Context, requesterID, targetID int64) error {
	if requesterID == targetID {
		return fmt.Errorf("%w: cannot add yourself", apperrors.ErrBadRequest)
	}

	exists, err := s.userRepo.Exists(ctx, targetID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: user %d", apperrors.ErrNotFound, targetID)
	}

	existing, err := s.contactRepo.GetByPair(ctx, requesterID, targetID)
	if err != nil && !errors.Is(err, apperrors.ErrContactNotFound) {
		return err
	}

	if existing != nil {
		switch existing.Status {
		case domain.ContactStatusAccepted:
			return apperrors.ErrContactAlreadyExists
		case domain.ContactStatusPending:
			if existing.ActionUserID == requesterID {
				return apperrors.ErrContactAlreadyExists
			}
			// Встречный запрос: обе стороны хотят контакт - принимаем
			return s.setStatus(ctx, existing, domain.ContactStatusAccepted, requesterID, domain.AuditActionContactAccepted)
		case domain.ContactStatusBlocked:
			return apperrors.ErrContactBlocked
		case domain.ContactStatusDeclined:
			// Отклоненный запрос можно отправить повторно
			return s.setStatus(ctx, existing, domain.ContactStatusPending, requesterID, domain.AuditActionContactRequest)
		}
	}

	userOne, userTwo := requesterID, targetID
	if userOne > userTwo {
		userOne, userTwo = userTwo, userOne
	}

	contact := &domain.Contact{
		UserOneID:    userOne,
		UserTwoID:    userTwo,
		Status:       domain.ContactStatusPending,
		ActionUserID: requesterID,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.contactRepo.Create(ctx, contact); err != nil {
		return err
	}

	s.audit(ctx, requesterID, domain.AuditActionContactRequest, fmt.Sprintf("target=%d", targetID))
	return nil
}

func (s *contactService) Respond(ctx context.Context, currentUserID, otherUserID int64, accept bool) error {
	contact, err := s.contactRepo.GetByPair(ctx, currentUserID, otherUserID)
	if err != nil {
		return err
	}

	if contact.Status != domain.ContactStatusPending {
		return fmt.Errorf("%w: request is not pending", apperrors.ErrBadRequest)
	}
	// Отвечать может только адресат запроса
	if contact.ActionUserID == currentUserID {
		return fmt.Errorf("%w: cannot respond to own request", apperrors.ErrForbidden)
	}

	status := domain.ContactStatusDeclined
	action := domain.AuditActionContactDeclined
	if accept {
		status = domain.ContactStatusAccepted
		action = domain.AuditActionContactAccepted
	}

	return s.setStatus(ctx, contact, status, currentUserID, action)
}

func (s *contactService) Remove(ctx context.Context, currentUserID, contactUserID int64) error {
	contact, err := s.contactRepo.GetByPair(ctx, currentUserID, contactUserID)
	if err != nil {
		return err
	}
	if contact.Status != domain.ContactStatusAccepted {
		return fmt.Errorf("%w: not an accepted contact", apperrors.ErrBadRequest)
	}

	if err := s.contactRepo.Delete(ctx, contact.ID); err != nil {
		return err
	}

	s.audit(ctx, currentUserID, domain.AuditActionContactRemoved, fmt.Sprintf("contact=%d", contactUserID))
	return nil
}

func (s *contactService) Block(ctx context.Context, currentUserID, targetID int64) error {
	if currentUserID == targetID {
		return fmt.Errorf("%w: cannot block yourself", apperrors.ErrBadRequest)
	}

	contact, err := s.contactRepo.GetByPair(ctx, currentUserID, targetID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrContactNotFound) {
			return err
		}
		userOne, userTwo := currentUserID, targetID
		if userOne > userTwo {
			userOne, userTwo = userTwo, userOne
		}
		contact = &domain.Contact{
			UserOneID:    userOne,
			UserTwoID:    userTwo,
			Status:       domain.ContactStatusBlocked,
			ActionUserID: currentUserID,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := s.contactRepo.Create(ctx, contact); err != nil {
			return err
		}
		s.audit(ctx, currentUserID, domain.AuditActionContactBlocked, fmt.Sprintf("target=%d", targetID))
		return nil
	}

	// Уже заблокировано другой стороной - не перехватываем блокировку
	if contact.Status == domain.ContactStatusBlocked && contact.ActionUserID != currentUserID {
		return apperrors.ErrContactBlocked
	}

	return s.setStatus(ctx, contact, domain.ContactStatusBlocked, currentUserID, domain.AuditActionContactBlocked)
}

func (s *contactService) ListContacts(ctx context.Context, userID int64) ([]*domain.Contact, error) {
	return s.contactRepo.ListByUserAndStatus(ctx, userID, domain.ContactStatusAccepted)
}

func (s *contactService) ListPending(ctx context.Context, userID int64, incoming bool) ([]*domain.Contact, error) {
	return s.contactRepo.ListPending(ctx, userID, incoming)
}

func (s *contactService) setStatus(ctx context.Context, contact *domain.Contact, status domain.ContactStatus, actionUserID int64, auditAction string) error {
	if err := s.contactRepo.UpdateStatus(ctx, contact.ID, status, actionUserID); err != nil {
		return err
	}
	s.audit(ctx, actionUserID, auditAction, fmt.Sprintf("contact=%d", contact.OtherParticipant(actionUserID)))
	return nil
}

func (s *contactService) audit(ctx context.Context, userID int64, action, details string) {
	entry := &domain.AuditEntry{
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if err := s.auditRepo.CreateEntry(ctx, entry); err != nil {
		s.log.Warn("Failed to write audit entry", "error", err, "action", action)
	}
}
