package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents the account.
type User struct {
	ID             uuid.UUID
	Email          string
	Username       *string
	IsActive       bool
	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsLocked reports whether the account is locked at the given instant.
func (u *User) IsLocked(now time.Time) bool {
	if u.LockedUntil == nil {
		return false
	}
	return now.Before(*u.LockedUntil)
}

// RecordFailure increments the failed attempt counter and, once the counter
// reaches ceiling, locks the account until now+lockFor. Pure: callers persist
// the result. The persisted path uses an equivalent atomic SQL update.
func (u *User) RecordFailure(now time.Time, ceiling int, lockFor time.Duration) {
	u.FailedAttempts++
	if u.FailedAttempts >= ceiling {
		until := now.Add(lockFor)
		u.LockedUntil = &until
	}
	u.UpdatedAt = now
}

// RecordSuccess clears the failure counter and lockout and stamps last login.
func (u *User) RecordSuccess(now time.Time) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	u.UpdatedAt = now
}

// UserPassword stores the password digest separately from the user profile.
type UserPassword struct {
	UserID            uuid.UUID
	PasswordDigest    string
	PasswordUpdatedAt time.Time
}
