package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"chatverse/internal/domain"
	apperrors "chatverse/pkg/errors"
	"chatverse/pkg/logger"
)

type fakeUserRepo struct {
	existing map[int64]bool
	err      error
}

func (r *fakeUserRepo) Create(context.Context, *domain.User) error { return nil }
func (r *fakeUserRepo) GetByID(context.Context, int64) (*domain.User, error) {
	return nil, apperrors.ErrNotFound
}
func (r *fakeUserRepo) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, apperrors.ErrNotFound
}
func (r *fakeUserRepo) UpdateLastLogin(context.Context, int64) error { return nil }

func (r *fakeUserRepo) Exists(_ context.Context, id int64) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	return r.existing[id], nil
}

type fakeContactRepo struct {
	pair *domain.Contact
	err  error
}

func (r *fakeContactRepo) Create(context.Context, *domain.Contact) error { return nil }
func (r *fakeContactRepo) UpdateStatus(context.Context, int64, domain.ContactStatus, int64) error {
	return nil
}
func (r *fakeContactRepo) Delete(context.Context, int64) error { return nil }
func (r *fakeContactRepo) ListByUserAndStatus(context.Context, int64, domain.ContactStatus) ([]*domain.Contact, error) {
	return nil, nil
}
func (r *fakeContactRepo) ListPending(context.Context, int64, bool) ([]*domain.Contact, error) {
	return nil, nil
}

func (r *fakeContactRepo) GetByPair(context.Context, int64, int64) (*domain.Contact, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.pair == nil {
		return nil, apperrors.ErrContactNotFound
	}
	return r.pair, nil
}

type fakeHistoryRepo struct {
	messages []*domain.ChatMessage
	err      error
	lastKey  string
}

func (r *fakeHistoryRepo) Append(_ context.Context, m *domain.ChatMessage) (*domain.ChatMessage, error) {
	return m, nil
}
func (r *fakeHistoryRepo) GetByMessageID(context.Context, string) (*domain.ChatMessage, error) {
	return nil, apperrors.ErrNotFound
}

func (r *fakeHistoryRepo) ReadConversation(_ context.Context, conversationKey string) ([]*domain.ChatMessage, error) {
	r.lastKey = conversationKey
	return r.messages, r.err
}

type fakeProducer struct {
	keys     []string
	messages []*domain.ChatMessage
	err      error
}

func (p *fakeProducer) Enqueue(_ context.Context, conversationKey string, message *domain.ChatMessage) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, conversationKey)
	p.messages = append(p.messages, message)
	return nil
}

func newChatFixture() (*fakeUserRepo, *fakeHistoryRepo, *fakeContactRepo, *fakeProducer, ChatService) {
	users := &fakeUserRepo{existing: map[int64]bool{7: true, 42: true}}
	messages := &fakeHistoryRepo{}
	contacts := &fakeContactRepo{}
	producer := &fakeProducer{}
	svc := NewChatService(users, messages, contacts, producer, logger.NewNop())
	return users, messages, contacts, producer, svc
}

func TestChatService_SubmitEnqueues(t *testing.T) {
	_, _, _, producer, svc := newChatFixture()

	msg, err := svc.Submit(context.Background(), 42, 7, "  привет ")
	require.NoError(t, err)

	require.Equal(t, "7_42", msg.ConversationKey)
	require.Equal(t, int64(42), msg.SenderID)
	require.Equal(t, int64(7), msg.RecipientID)
	require.Equal(t, "привет", msg.Content)
	require.NotEmpty(t, msg.MessageID)

	require.Equal(t, []string{"7_42"}, producer.keys)
	require.Same(t, msg, producer.messages[0])
}

func TestChatService_SubmitKeySymmetric(t *testing.T) {
	_, _, _, producer, svc := newChatFixture()

	a, err := svc.Submit(context.Background(), 7, 42, "туда")
	require.NoError(t, err)
	b, err := svc.Submit(context.Background(), 42, 7, "обратно")
	require.NoError(t, err)

	require.Equal(t, a.ConversationKey, b.ConversationKey)
	require.Equal(t, []string{"7_42", "7_42"}, producer.keys)
}

func TestChatService_SubmitRejectsEmptyContent(t *testing.T) {
	_, _, _, producer, svc := newChatFixture()

	_, err := svc.Submit(context.Background(), 7, 42, "   ")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
	require.Empty(t, producer.keys)
}

func TestChatService_SubmitRejectsSelfMessage(t *testing.T) {
	_, _, _, producer, svc := newChatFixture()

	_, err := svc.Submit(context.Background(), 7, 7, "сам себе")
	require.ErrorIs(t, err, apperrors.ErrInvalidParticipants)
	require.Empty(t, producer.keys)
}

func TestChatService_SubmitUnknownRecipient(t *testing.T) {
	_, _, _, producer, svc := newChatFixture()

	_, err := svc.Submit(context.Background(), 7, 99, "кому?")
	require.ErrorIs(t, err, apperrors.ErrRecipientNotFound)
	require.Empty(t, producer.keys)
}

func TestChatService_SubmitBlockedPair(t *testing.T) {
	_, _, contacts, producer, svc := newChatFixture()
	contacts.pair = &domain.Contact{
		UserOneID: 7, UserTwoID: 42,
		Status: domain.ContactStatusBlocked, ActionUserID: 42,
	}

	_, err := svc.Submit(context.Background(), 7, 42, "привет")
	require.ErrorIs(t, err, apperrors.ErrContactBlocked)
	require.Empty(t, producer.keys)
}

func TestChatService_SubmitAcceptedPair(t *testing.T) {
	_, _, contacts, _, svc := newChatFixture()
	contacts.pair = &domain.Contact{
		UserOneID: 7, UserTwoID: 42,
		Status: domain.ContactStatusAccepted, ActionUserID: 7,
	}

	_, err := svc.Submit(context.Background(), 7, 42, "привет")
	require.NoError(t, err)
}

func TestChatService_SubmitEnqueueFailure(t *testing.T) {
	_, _, _, producer, svc := newChatFixture()
	producer.err = apperrors.ErrStorageUnavailable

	_, err := svc.Submit(context.Background(), 7, 42, "привет")
	require.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
}

func TestChatService_GetHistory(t *testing.T) {
	_, messages, _, _, svc := newChatFixture()
	messages.messages = []*domain.ChatMessage{
		domain.NewChatMessage(7, 42, "7_42", "первое"),
		domain.NewChatMessage(42, 7, "7_42", "второе"),
	}

	history, err := svc.GetHistory(context.Background(), "7_42", 42)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "7_42", messages.lastKey)
}

func TestChatService_GetHistoryDeniesOutsider(t *testing.T) {
	_, messages, _, _, svc := newChatFixture()

	_, err := svc.GetHistory(context.Background(), "7_42", 9)
	require.ErrorIs(t, err, apperrors.ErrAccessDenied)
	require.Empty(t, messages.lastKey)
}

func TestChatService_GetHistoryDeniesMalformedKey(t *testing.T) {
	_, _, _, _, svc := newChatFixture()

	for _, key := range []string{"", "42", "42_7", "a_b", "7_42_9"} {
		_, err := svc.GetHistory(context.Background(), key, 42)
		require.ErrorIs(t, err, apperrors.ErrAccessDenied, "key %q", key)
	}
}
