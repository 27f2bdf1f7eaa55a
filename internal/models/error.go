package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication and policy errors
	ErrRateLimitExceeded     = errors.New("too many failed attempts")
	ErrBannedPermanently     = errors.New("account is permanently banned")
	ErrBannedTemporarily     = errors.New("account is temporarily banned")
	ErrCaptchaMismatch       = errors.New("captcha verification failed")
	ErrWrongPassword         = errors.New("current password is incorrect")
	ErrTokenInvalidOrExpired = errors.New("token is invalid or expired")
)
