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
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

// UserRecord is the canonical per-user state: the pending challenge (if
// any) and every credential registered for the username. It is stored as
// one JSON value under the username key.
type UserRecord struct {
	// Username is the identity the record belongs to.
	Username string `json:"username"`

	// Challenge is the pending single-use challenge, or empty when none
	// is outstanding. It is overwritten on every issuance and cleared
	// when consumed.
	Challenge string `json:"challenge,omitempty"`

	// ChallengeIssuedAt is when the pending challenge was issued.
	ChallengeIssuedAt time.Time `json:"challenge_issued_at,omitempty"`

	// Credentials holds the registered credentials in registration order.
	Credentials []*CredentialEntry `json:"credentials"`
}

// NewUserRecord creates an empty record for username.
func NewUserRecord(username string) *UserRecord {
	return &UserRecord{
		Username:    username,
		Credentials: make([]*CredentialEntry, 0),
	}
}

// Credential returns the credential with the given ID, if registered.
func (r *UserRecord) Credential(credentialID string) (*CredentialEntry, bool) {
	for _, cred := range r.Credentials {
		if cred.ID == credentialID {
			return cred, true
		}
	}
	return nil, false
}

// CredentialIDs returns the IDs of all registered credentials in
// registration order.
func (r *UserRecord) CredentialIDs() []string {
	ids := make([]string, len(r.Credentials))
	for i, cred := range r.Credentials {
		ids[i] = cred.ID
	}
	return ids
}

// SetChallenge replaces any pending challenge.
func (r *UserRecord) SetChallenge(challenge string, issuedAt time.Time) {
	r.Challenge = challenge
	r.ChallengeIssuedAt = issuedAt
}

// ClearChallenge invalidates the pending challenge.
func (r *UserRecord) ClearChallenge() {
	r.Challenge = ""
	r.ChallengeIssuedAt = time.Time{}
}

// CredentialEntry is a registered public-key credential together with the
// authenticator metadata needed to verify future assertions.
type CredentialEntry struct {
	// ID is the base64url-encoded credential identifier assigned by the
	// authenticator, unique within a user record.
	ID string `json:"id"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// AttestationType indicates the type of attestation used.
	AttestationType string `json:"attestation_type"`

	// Transport lists the transports supported by the authenticator.
	Transport []protocol.AuthenticatorTransport `json:"transport,omitempty"`

	// Flags contains authenticator flags.
	Flags CredentialFlags `json:"flags"`

	// Authenticator contains authenticator-specific data.
	Authenticator AuthenticatorData `json:"authenticator"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential was last used for authentication.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// CredentialFlags contains authenticator capability flags.
type CredentialFlags struct {
	// UserPresent indicates the user was present during the operation.
	UserPresent bool `json:"user_present"`

	// UserVerified indicates the user was verified (e.g., biometric, PIN).
	UserVerified bool `json:"user_verified"`

	// BackupEligible indicates the credential can be backed up.
	BackupEligible bool `json:"backup_eligible"`

	// BackupState indicates the credential is currently backed up.
	BackupState bool `json:"backup_state"`
}

// AuthenticatorData contains authenticator-specific information.
type AuthenticatorData struct {
	// AAGUID is the authenticator's unique identifier.
	AAGUID []byte `json:"aaguid"`

	// SignCount is the signature counter for clone detection. It must
	// never regress across verified authentications.
	SignCount uint32 `json:"sign_count"`

	// CloneWarning indicates a potential cloned authenticator.
	CloneWarning bool `json:"clone_warning"`
}

// Expected carries the parameters the verification engine checks a signed
// response against. Origin and RPID are engine configuration, never
// request-derived.
type Expected struct {
	// Username is the identity the ceremony belongs to.
	Username string

	// Challenge is the pending challenge the response must be bound to.
	Challenge string

	// UserVerificationRequired requires the UV flag on assertions.
	UserVerificationRequired bool

	// Counter is the stored sign counter for the asserted credential.
	Counter uint32
}

// AssertionResult is the outcome of a verified authentication.
type AssertionResult struct {
	// Username is the authenticated identity.
	Username string `json:"username"`

	// CredentialID is the base64url-encoded ID of the credential used.
	CredentialID string `json:"credentialId"`

	// SignCount is the authenticator's reported counter after this use.
	SignCount uint32 `json:"signCount"`

	// UserPresent reports the UP flag from the assertion.
	UserPresent bool `json:"userPresent"`

	// UserVerified reports the UV flag from the assertion.
	UserVerified bool `json:"userVerified"`
}

// LoginChallengeResult is returned when a login challenge is issued: the
// challenge plus the credential IDs the client-side authenticator may
// select from.
type LoginChallengeResult struct {
	// Challenge is the issued single-use challenge.
	Challenge string `json:"challenge"`

	// CredentialIDs lists all registered credential IDs for the user.
	CredentialIDs []string `json:"credentialIds"`
}
