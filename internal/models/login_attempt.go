package models

import "time"

// LoginAttempt represents a single login attempt in the system
type LoginAttempt struct {
	ID            string    `db:"id"`
	IPAddress     string    `db:"ip_address"`
	Route         string    `db:"route"`
	AttemptTime   time.Time `db:"attempt_time"`
	Success       bool      `db:"success"`
	FailureReason *string   `db:"failure_reason"`
	ExpiresAt     time.Time `db:"expires_at"`
}
