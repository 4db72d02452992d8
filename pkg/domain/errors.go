package domain

import "errors"

// Authentication errors
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUserAlreadyExists     = errors.New("user already exists")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountLocked         = errors.New("account locked due to too many failed authentication attempts")
	ErrAccountInactive       = errors.New("account is deactivated")
)

// Challenge errors
var (
	ErrChallengeInvalid = errors.New("challenge not found, already used, or mismatched")
	ErrChallengeExpired = errors.New("challenge expired")
)

// Credential errors
var (
	ErrCredentialNotFound    = errors.New("no active credential found")
	ErrDuplicateCredential   = errors.New("credential already registered")
	ErrCloneDetected         = errors.New("authenticator sign count did not increase - possible cloned credential")
	ErrFaceAlreadyRegistered = errors.New("an active face credential already exists")
	ErrFaceNotRecognized     = errors.New("face not recognized")
	ErrInvalidSignature      = errors.New("invalid face signature format")
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionRevoked  = errors.New("session revoked")
	ErrInvalidToken    = errors.New("invalid token")
)

// Validation errors
var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidUsername = errors.New("invalid username format")
	ErrWeakPassword    = errors.New("password does not meet requirements")
)

// TOTP errors
var (
	ErrTOTPNotEnrolled = errors.New("TOTP is not set up for this account")
	ErrInvalidTOTPCode = errors.New("invalid TOTP code")
)
