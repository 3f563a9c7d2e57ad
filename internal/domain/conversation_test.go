package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "chatverse/pkg/errors"
)

func TestResolveConversationKey_Symmetric(t *testing.T) {
	keyAB, err := ResolveConversationKey(7, 42)
	require.NoError(t, err)
	keyBA, err := ResolveConversationKey(42, 7)
	require.NoError(t, err)

	require.Equal(t, "7_42", keyAB)
	require.Equal(t, keyAB, keyBA)
}

func TestResolveConversationKey_NumericOrder(t *testing.T) {
	// Сортировка числовая, не лексикографическая
	key, err := ResolveConversationKey(100, 9)
	require.NoError(t, err)
	require.Equal(t, "9_100", key)
}

func TestResolveConversationKey_SelfConversationRejected(t *testing.T) {
	_, err := ResolveConversationKey(7, 7)
	require.ErrorIs(t, err, apperrors.ErrInvalidParticipants)
}

func TestResolveConversationKey_UnsetParticipantsRejected(t *testing.T) {
	_, err := ResolveConversationKey(0, 42)
	require.ErrorIs(t, err, apperrors.ErrInvalidParticipants)

	_, err = ResolveConversationKey(7, -1)
	require.ErrorIs(t, err, apperrors.ErrInvalidParticipants)
}

func TestParticipantsFromKey(t *testing.T) {
	userA, userB, err := ParticipantsFromKey("7_42")
	require.NoError(t, err)
	require.Equal(t, int64(7), userA)
	require.Equal(t, int64(42), userB)
}

func TestParticipantsFromKey_Malformed(t *testing.T) {
	for _, key := range []string{"", "7", "7_42_9", "a_b", "42_7", "7_7"} {
		_, _, err := ParticipantsFromKey(key)
		require.ErrorIs(t, err, apperrors.ErrInvalidParticipants, "key %q", key)
	}
}

func TestIsParticipant(t *testing.T) {
	ok, err := IsParticipant("7_42", 42)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = IsParticipant("7_42", 9)
	require.NoError(t, err)
	require.False(t, ok)
}
