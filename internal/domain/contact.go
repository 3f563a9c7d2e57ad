package domain

import "time"

// ContactStatus - статус связи между двумя пользователями.
type ContactStatus string

const (
	// Запрос отправлен и ожидает ответа.
	ContactStatusPending ContactStatus = "pending"
	// Запрос принят, пользователи являются контактами.
	ContactStatusAccepted ContactStatus = "accepted"
	// Запрос отклонен.
	ContactStatusDeclined ContactStatus = "declined"
	// Один пользователь заблокировал другого (кто именно - ActionUserID).
	ContactStatusBlocked ContactStatus = "blocked"
)

// Contact - связь пары пользователей. UserOneID всегда меньше UserTwoID,
// пара уникальна. ActionUserID - кто инициировал последнее изменение статуса.
type Contact struct {
	ID           int64         `json:"id"`
	UserOneID    int64         `json:"user_one_id"`
	UserTwoID    int64         `json:"user_two_id"`
	Status       ContactStatus `json:"status"`
	ActionUserID int64         `json:"action_user_id"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// OtherParticipant возвращает второго участника связи.
func (c *Contact) OtherParticipant(userID int64) int64 {
	if c.UserOneID == userID {
		return c.UserTwoID
	}
	return c.UserOneID
}
