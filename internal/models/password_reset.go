package models

import "time"

// PasswordResetToken — одноразовый токен сброса пароля. В базе хранится только хеш.
type PasswordResetToken struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	TokenHash string     `json:"-" db:"token_hash"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Used — токен уже погашен (или отозван после успешного сброса другим токеном).
func (t *PasswordResetToken) Used() bool {
	return t.UsedAt != nil
}

// Expired — срок действия истёк к моменту now.
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
