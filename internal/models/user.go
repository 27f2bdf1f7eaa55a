package models

import (
	"time"
)

type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	IsAdmin        bool
	Banned         bool
	BanExpiration  *time.Time // nil while Banned means a permanent ban
	RegistrationIP string
	Bio            *string
	ProfileImage   *string // URI, nil until the user sets one
	BannerImage    *string
}

// BanActive reports whether the ban currently blocks login. A temporary
// ban whose expiration has passed is treated as lifted without requiring
// a write to the store.
func (u *User) BanActive(now time.Time) bool {
	if !u.Banned {
		return false
	}
	if u.BanExpiration == nil {
		return true
	}
	return now.Before(*u.BanExpiration)
}

// BanPermanent reports whether the ban has no expiration.
func (u *User) BanPermanent() bool {
	return u.Banned && u.BanExpiration == nil
}
