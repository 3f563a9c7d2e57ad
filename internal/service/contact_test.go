package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"chatverse/internal/domain"
	apperrors "chatverse/pkg/errors"
	"chatverse/pkg/logger"
)

type stubContactRepo struct {
	pair    *domain.Contact
	pairErr error

	created     *domain.Contact
	updatedTo   domain.ContactStatus
	updatedBy   int64
	deletedID   int64
	updateCalls int
}

func (r *stubContactRepo) Create(_ context.Context, contact *domain.Contact) error {
	r.created = contact
	return nil
}

func (r *stubContactRepo) GetByPair(context.Context, int64, int64) (*domain.Contact, error) {
	if r.pairErr != nil {
		return nil, r.pairErr
	}
	if r.pair == nil {
		return nil, apperrors.ErrContactNotFound
	}
	return r.pair, nil
}

func (r *stubContactRepo) UpdateStatus(_ context.Context, _ int64, status domain.ContactStatus, actionUserID int64) error {
	r.updateCalls++
	r.updatedTo = status
	r.updatedBy = actionUserID
	return nil
}

func (r *stubContactRepo) Delete(_ context.Context, contactID int64) error {
	r.deletedID = contactID
	return nil
}

func (r *stubContactRepo) ListByUserAndStatus(context.Context, int64, domain.ContactStatus) ([]*domain.Contact, error) {
	return nil, nil
}

func (r *stubContactRepo) ListPending(context.Context, int64, bool) ([]*domain.Contact, error) {
	return nil, nil
}

type stubAuditRepo struct {
	entries []*domain.AuditEntry
}

func (r *stubAuditRepo) CreateEntry(_ context.Context, entry *domain.AuditEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func newContactFixture() (*stubContactRepo, *stubAuditRepo, ContactService) {
	contacts := &stubContactRepo{}
	audit := &stubAuditRepo{}
	users := &fakeUserRepo{existing: map[int64]bool{7: true, 42: true}}
	svc := NewContactService(contacts, users, audit, logger.NewNop())
	return contacts, audit, svc
}

func pendingContact(actionUserID int64) *domain.Contact {
	return &domain.Contact{
		ID: 1, UserOneID: 7, UserTwoID: 42,
		Status: domain.ContactStatusPending, ActionUserID: actionUserID,
	}
}

func TestContactService_SendRequestCreatesPending(t *testing.T) {
	contacts, audit, svc := newContactFixture()

	require.NoError(t, svc.SendRequest(context.Background(), 42, 7))

	require.NotNil(t, contacts.created)
	// Пара хранится в каноническом порядке
	require.Equal(t, int64(7), contacts.created.UserOneID)
	require.Equal(t, int64(42), contacts.created.UserTwoID)
	require.Equal(t, domain.ContactStatusPending, contacts.created.Status)
	require.Equal(t, int64(42), contacts.created.ActionUserID)
	require.Len(t, audit.entries, 1)
}

func TestContactService_SendRequestRejectsSelf(t *testing.T) {
	_, _, svc := newContactFixture()
	err := svc.SendRequest(context.Background(), 7, 7)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestContactService_SendRequestUnknownTarget(t *testing.T) {
	_, _, svc := newContactFixture()
	err := svc.SendRequest(context.Background(), 7, 99)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestContactService_SendRequestCrossAccepts(t *testing.T) {
	contacts, _, svc := newContactFixture()
	// Запрос от 7 уже висит; встречный запрос от 42 принимает его
	contacts.pair = pendingContact(7)

	require.NoError(t, svc.SendRequest(context.Background(), 42, 7))
	require.Equal(t, domain.ContactStatusAccepted, contacts.updatedTo)
	require.Equal(t, int64(42), contacts.updatedBy)
}

func TestContactService_SendRequestDuplicate(t *testing.T) {
	contacts, _, svc := newContactFixture()
	contacts.pair = pendingContact(7)

	err := svc.SendRequest(context.Background(), 7, 42)
	require.ErrorIs(t, err, apperrors.ErrContactAlreadyExists)
}

func TestContactService_SendRequestToBlockedPair(t *testing.T) {
	contacts, _, svc := newContactFixture()
	contacts.pair = &domain.Contact{
		ID: 1, UserOneID: 7, UserTwoID: 42,
		Status: domain.ContactStatusBlocked, ActionUserID: 42,
	}

	err := svc.SendRequest(context.Background(), 7, 42)
	require.ErrorIs(t, err, apperrors.ErrContactBlocked)
}

func TestContactService_RespondAccept(t *testing.T) {
	contacts, _, svc := newContactFixture()
	contacts.pair = pendingContact(7)

	require.NoError(t, svc.Respond(context.Background(), 42, 7, true))
	require.Equal(t, domain.ContactStatusAccepted, contacts.updatedTo)
}

func TestContactService_RespondDecline(t *testing.T) {
	contacts, _, svc := newContactFixture()
	contacts.pair = pendingContact(7)

	require.NoError(t, svc.Respond(context.Background(), 42, 7, false))
	require.Equal(t, domain.ContactStatusDeclined, contacts.updatedTo)
}

func TestContactService_RespondOwnRequestForbidden(t *testing.T) {
	contacts, _, svc := newContactFixture()
	contacts.pair = pendingContact(7)

	err := svc.Respond(context.Background(), 7, 42, true)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
	require.Zero(t, contacts.updateCalls)
}

func TestContactService_RespondNotPending(t *testing.T) {
	contacts, _, svc := newContactFixture()
	contacts.pair = &domain.Contact{
		ID: 1, UserOneID: 7, UserTwoID: 42,
		Status: domain.ContactStatusAccepted, ActionUserID: 42,
	}

	err := svc.Respond(context.Background(), 7, 42, true)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestContactService_RemoveAccepted(t *testing.T) {
	contacts, _, svc := newContactFixture()
	contacts.pair = &domain.Contact{
		ID: 5, UserOneID: 7, UserTwoID: 42,
		Status: domain.ContactStatusAccepted, ActionUserID: 42,
	}

	require.NoError(t, svc.Remove(context.Background(), 7, 42))
	require.Equal(t, int64(5), contacts.deletedID)
}

func TestContactService_RemoveNonAccepted(t *testing.T) {
	contacts, _, svc := newContactFixture()
	contacts.pair = pendingContact(7)

	err := svc.Remove(context.Background(), 7, 42)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
	require.Zero(t, contacts.deletedID)
}

func TestContactService_BlockWithoutContact(t *testing.T) {
	contacts, _, svc := newContactFixture()

	require.NoError(t, svc.Block(context.Background(), 7, 42))
	require.NotNil(t, contacts.created)
	require.Equal(t, domain.ContactStatusBlocked, contacts.created.Status)
	require.Equal(t, int64(7), contacts.created.ActionUserID)
}

func TestContactService_BlockExistingContact(t *testing.T) {
	contacts, _, svc := newContactFixture()
	contacts.pair = &domain.Contact{
		ID: 1, UserOneID: 7, UserTwoID: 42,
		Status: domain.ContactStatusAccepted, ActionUserID: 42,
	}

	require.NoError(t, svc.Block(context.Background(), 7, 42))
	require.Equal(t, domain.ContactStatusBlocked, contacts.updatedTo)
	require.Equal(t, int64(7), contacts.updatedBy)
}

func TestContactService_BlockAlreadyBlockedByOther(t *testing.T) {
	contacts, _, svc := newContactFixture()
	contacts.pair = &domain.Contact{
		ID: 1, UserOneID: 7, UserTwoID: 42,
		Status: domain.ContactStatusBlocked, ActionUserID: 42,
	}

	err := svc.Block(context.Background(), 7, 42)
	require.ErrorIs(t, err, apperrors.ErrContactBlocked)
	require.Zero(t, contacts.updateCalls)
}
