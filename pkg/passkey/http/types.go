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

package http

import "encoding/json"

// ChallengeRequest is the request body for both challenge endpoints.
type ChallengeRequest struct {
	// Username is the identity the challenge is issued for (required).
	Username string `json:"username"`
}

// RegisterVerifyRequest is the request body for completing registration.
type RegisterVerifyRequest struct {
	// Username is the identity being registered (required).
	Username string `json:"username"`

	// Registration is the encoded attestation response from the
	// authenticator, passed through to the verification engine untouched.
	Registration json.RawMessage `json:"registration"`
}

// LoginVerifyRequest is the request body for completing authentication.
type LoginVerifyRequest struct {
	// Username is the identity being authenticated (required).
	Username string `json:"username"`

	// Authentication is the encoded assertion response from the
	// authenticator.
	Authentication json.RawMessage `json:"authentication"`
}

// RegisterVerifyResponse is the response after a successful registration.
type RegisterVerifyResponse struct {
	// Status mirrors the HTTP status for clients that only read the body.
	Status int `json:"status"`
}

// LoginChallengeResponse is the response for a successful login challenge.
type LoginChallengeResponse struct {
	// Challenge is the issued single-use challenge.
	Challenge string `json:"challenge"`

	// CredentialIDs lists the registered credential IDs for the user.
	CredentialIDs []string `json:"credentialIds"`
}

// LoginVerifyResponse wraps the assertion result after a successful
// authentication.
type LoginVerifyResponse struct {
	// Data is the verified assertion result.
	Data interface{} `json:"data"`
}

// StatusResponse is the JSON body for status-only failures.
type StatusResponse struct {
	// Status is the HTTP status code.
	Status int `json:"status"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`
}

// Error codes returned in ErrorResponse. Verification failures share a
// single code so clients cannot probe which check rejected them.
const (
	ErrorCodeCredentialNotFound = "credential_not_found"
	ErrorCodeCredentialExists   = "credential_exists"
	ErrorCodeVerificationFailed = "verification_failed"
	ErrorCodeInternalError      = "internal_error"
)

// Body tokens preserved from the original wire protocol.
const (
	// BodyMissingField is returned when a required request field is absent.
	BodyMissingField = "miss"

	// BodyChallengeExpired is returned when no pending challenge exists.
	BodyChallengeExpired = "expired"

	// BodyHello is returned for any unrouted path.
	BodyHello = "Hello World!"
)
