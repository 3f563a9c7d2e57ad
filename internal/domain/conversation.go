package domain

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "chatverse/pkg/errors"
)

const conversationKeySeparator = "_"

// ResolveConversationKey вычисляет канонический ключ переписки двух
// пользователей. Ключ симметричен: порядок аргументов не влияет на результат.
// Переписка с самим собой запрещена.
func ResolveConversationKey(userA, userB int64) (string, error) {
	if userA <= 0 || userB <= 0 {
		return "", fmt.Errorf("%w: participant ids must be set", apperrors.ErrInvalidParticipants)
	}
	if userA == userB {
		return "", fmt.Errorf("%w: cannot start a conversation with yourself", apperrors.ErrInvalidParticipants)
	}
	if userA > userB {
		userA, userB = userB, userA
	}
	return strconv.FormatInt(userA, 10) + conversationKeySeparator + strconv.FormatInt(userB, 10), nil
}

// ParticipantsFromKey разбирает канонический ключ обратно в пару участников.
// Используется проверкой доступа к истории.
func ParticipantsFromKey(key string) (int64, int64, error) {
	parts := strings.Split(key, conversationKeySeparator)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: malformed conversation key %q", apperrors.ErrInvalidParticipants, key)
	}

	userA, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed conversation key %q", apperrors.ErrInvalidParticipants, key)
	}
	userB, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed conversation key %q", apperrors.ErrInvalidParticipants, key)
	}

	// Ключ обязан быть в канонической форме, иначе один и тот же диалог
	// распадется на два журнала.
	canonical, err := ResolveConversationKey(userA, userB)
	if err != nil {
		return 0, 0, err
	}
	if canonical != key {
		return 0, 0, fmt.Errorf("%w: conversation key %q is not canonical", apperrors.ErrInvalidParticipants, key)
	}

	return userA, userB, nil
}

// IsParticipant сообщает, входит ли пользователь в переписку с данным ключом.
func IsParticipant(key string, userID int64) (bool, error) {
	userA, userB, err := ParticipantsFromKey(key)
	if err != nil {
		return false, err
	}
	return userID == userA || userID == userB, nil
}
