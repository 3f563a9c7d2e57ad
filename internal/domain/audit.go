package domain

import "time"

// AuditEntry - запись журнала действий (регистрация, вход, операции с контактами).
type AuditEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	AuditActionUserRegistered  = "user.registered"
	AuditActionUserLogin       = "user.login"
	AuditActionContactRequest  = "contact.request"
	AuditActionContactAccepted = "contact.accepted"
	AuditActionContactDeclined = "contact.declined"
	AuditActionContactRemoved  = "contact.removed"
	AuditActionContactBlocked  = "contact.blocked"
)
