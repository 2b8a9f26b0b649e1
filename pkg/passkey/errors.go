// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package passkey

import (
	"errors"
	"fmt"
)

// Sentinel errors for passkey operations.
var (
	// ErrUsernameRequired is returned when a request is missing the username.
	ErrUsernameRequired = errors.New("username is required")

	// ErrRegistrationRequired is returned when a registration response is missing.
	ErrRegistrationRequired = errors.New("registration response is required")

	// ErrAssertionRequired is returned when an authentication response is missing.
	ErrAssertionRequired = errors.New("authentication response is required")

	// ErrChallengeExpired is returned when no pending challenge exists for
	// the user: none was issued, it was already consumed, or it aged out.
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrNoCredentials is returned when a login flow is started for a user
	// with no registered credentials.
	ErrNoCredentials = errors.New("user has no registered credentials")

	// ErrCredentialNotFound is returned when the asserted credential ID does
	// not match any credential registered for the user.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialExists is returned when registration would duplicate a
	// credential ID already present on the user record.
	ErrCredentialExists = errors.New("credential already exists")

	// ErrVerificationFailed is returned when the verification engine rejects
	// an attestation or assertion.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrNotConfigured is returned when the service is not properly configured.
	ErrNotConfigured = errors.New("passkey service not configured")
)

// PasskeyError wraps an error with the operation that produced it.
type PasskeyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *PasskeyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PasskeyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *PasskeyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new PasskeyError with the given operation and error.
func NewError(op string, err error) error {
	return &PasskeyError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsValidation returns true if the error indicates a missing request field.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUsernameRequired) ||
		errors.Is(err, ErrRegistrationRequired) ||
		errors.Is(err, ErrAssertionRequired)
}

// IsChallengeExpired returns true if the error indicates a missing or
// consumed challenge.
func IsChallengeExpired(err error) bool {
	return errors.Is(err, ErrChallengeExpired)
}

// IsCredentialNotFound returns true if the error indicates an unknown
// credential ID.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsVerificationFailed returns true if the error indicates the engine
// rejected the cryptographic proof.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}
