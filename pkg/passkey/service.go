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
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passkey/pkg/kv"
)

const (
	// defaultChallengeTTL bounds how long an issued challenge stays
	// consumable.
	defaultChallengeTTL = 2 * time.Minute

	// casRetries bounds how often a read-modify-write sequence is retried
	// after losing a compare-and-swap race.
	casRetries = 4
)

// Service coordinates the challenge/credential lifecycle: it issues
// single-use challenges, appends verified credentials to user records, and
// validates signed assertions against them. All state lives in the
// versioned key-value store; every mutation is a compare-and-swap so
// concurrent requests for the same username cannot lose updates.
type Service struct {
	store        kv.Store
	verifier     Verifier
	challengeTTL time.Duration
	requireUV    bool
	now          func() time.Time
	configured   bool
}

// ServiceParams contains dependencies for creating a passkey service.
type ServiceParams struct {
	// Store is the user record persistence layer (required).
	Store kv.Store

	// Verifier is the cryptographic verification engine (required).
	Verifier Verifier

	// ChallengeTTL bounds the lifetime of an issued challenge.
	// Defaults to 2 minutes.
	ChallengeTTL time.Duration

	// AllowUnverifiedUsers drops the user-verification requirement on
	// assertions. Leave false unless the deployment has a reason not to
	// demand UV.
	AllowUnverifiedUsers bool
}

// NewService creates a new passkey service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}

	ttl := params.ChallengeTTL
	if ttl == 0 {
		ttl = defaultChallengeTTL
	}

	return &Service{
		store:        params.Store,
		verifier:     params.Verifier,
		challengeTTL: ttl,
		requireUV:    !params.AllowUnverifiedUsers,
		now:          time.Now,
		configured:   true,
	}, nil
}

// RegistrationChallenge issues a single-use challenge for username,
// creating the user record on first contact. Any previously pending
// challenge becomes unusable.
func (s *Service) RegistrationChallenge(ctx context.Context, username string) (string, error) {
	const op = "issue registration challenge"

	if !s.configured {
		return "", ErrNotConfigured
	}
	if username == "" {
		return "", NewError(op, ErrUsernameRequired)
	}

	for attempt := 0; attempt <= casRetries; attempt++ {
		record, version, err := s.loadRecord(ctx, username)
		if err != nil {
			if !errors.Is(err, kv.ErrKeyNotFound) {
				return "", WrapError(op, err)
			}
			record = NewUserRecord(username)
			version = 0
		}

		challenge := newChallenge()
		record.SetChallenge(challenge, s.now())

		if err := s.saveRecord(ctx, record, version); err != nil {
			if errors.Is(err, kv.ErrVersionConflict) {
				continue
			}
			return "", WrapError(op, err)
		}
		return challenge, nil
	}

	return "", NewError(op, kv.ErrVersionConflict)
}

// CompleteRegistration validates an encoded attestation response against
// the pending challenge and appends the resulting credential to the user
// record. The consumed challenge is cleared in the same write, so replaying
// the response fails with ErrChallengeExpired.
func (s *Service) CompleteRegistration(ctx context.Context, username string, registration []byte) (*CredentialEntry, error) {
	const op = "complete registration"

	if !s.configured {
		return nil, ErrNotConfigured
	}
	if username == "" {
		return nil, NewError(op, ErrUsernameRequired)
	}
	if len(registration) == 0 {
		return nil, NewError(op, ErrRegistrationRequired)
	}

	for attempt := 0; attempt <= casRetries; attempt++ {
		record, version, err := s.loadRecord(ctx, username)
		if err != nil {
			if errors.Is(err, kv.ErrKeyNotFound) {
				return nil, NewError(op, ErrChallengeExpired)
			}
			return nil, WrapError(op, err)
		}
		if !s.challengePending(record) {
			return nil, NewError(op, ErrChallengeExpired)
		}

		credential, err := s.verifier.VerifyRegistration(ctx, registration, Expected{
			Username:  username,
			Challenge: record.Challenge,
		})
		if err != nil {
			return nil, WrapError(op, err)
		}

		if _, exists := record.Credential(credential.ID); exists {
			return nil, NewError(op, ErrCredentialExists)
		}

		credential.CreatedAt = s.now().UTC()
		record.Credentials = append(record.Credentials, credential)
		record.ClearChallenge()

		if err := s.saveRecord(ctx, record, version); err != nil {
			if errors.Is(err, kv.ErrVersionConflict) {
				// Another writer got there first; re-read. If it consumed
				// the challenge, the retry fails with ErrChallengeExpired.
				continue
			}
			return nil, WrapError(op, err)
		}
		return credential, nil
	}

	return nil, NewError(op, kv.ErrVersionConflict)
}

// LoginChallenge issues a single-use challenge for an existing user and
// enumerates the credential IDs the authenticator may select from. A user
// with no registered credentials cannot start a login flow.
func (s *Service) LoginChallenge(ctx context.Context, username string) (*LoginChallengeResult, error) {
	const op = "issue login challenge"

	if !s.configured {
		return nil, ErrNotConfigured
	}
	if username == "" {
		return nil, NewError(op, ErrUsernameRequired)
	}

	for attempt := 0; attempt <= casRetries; attempt++ {
		record, version, err := s.loadRecord(ctx, username)
		if err != nil {
			if errors.Is(err, kv.ErrKeyNotFound) {
				return nil, NewError(op, ErrNoCredentials)
			}
			return nil, WrapError(op, err)
		}
		if len(record.Credentials) == 0 {
			return nil, NewError(op, ErrNoCredentials)
		}

		challenge := newChallenge()
		record.SetChallenge(challenge, s.now())

		if err := s.saveRecord(ctx, record, version); err != nil {
			if errors.Is(err, kv.ErrVersionConflict) {
				continue
			}
			return nil, WrapError(op, err)
		}

		return &LoginChallengeResult{
			Challenge:     challenge,
			CredentialIDs: record.CredentialIDs(),
		}, nil
	}

	return nil, NewError(op, kv.ErrVersionConflict)
}

// CompleteAuthentication selects the asserted credential, validates the
// encoded assertion against the pending challenge, and persists the
// engine-reported sign counter together with the challenge invalidation.
// Nothing is written when verification fails.
func (s *Service) CompleteAuthentication(ctx context.Context, username string, assertion []byte) (*AssertionResult, error) {
	const op = "complete authentication"

	if !s.configured {
		return nil, ErrNotConfigured
	}
	if username == "" {
		return nil, NewError(op, ErrUsernameRequired)
	}
	if len(assertion) == 0 {
		return nil, NewError(op, ErrAssertionRequired)
	}

	credentialID, err := assertedCredentialID(assertion)
	if err != nil {
		return nil, NewError(op, ErrAssertionRequired)
	}

	for attempt := 0; attempt <= casRetries; attempt++ {
		record, version, err := s.loadRecord(ctx, username)
		if err != nil {
			if errors.Is(err, kv.ErrKeyNotFound) {
				return nil, NewError(op, ErrChallengeExpired)
			}
			return nil, WrapError(op, err)
		}
		if len(record.Credentials) == 0 || !s.challengePending(record) {
			return nil, NewError(op, ErrChallengeExpired)
		}

		credential, found := record.Credential(credentialID)
		if !found {
			return nil, NewError(op, ErrCredentialNotFound)
		}

		result, err := s.verifier.VerifyAuthentication(ctx, assertion, credential, Expected{
			Username:                 username,
			Challenge:                record.Challenge,
			UserVerificationRequired: s.requireUV,
			Counter:                  credential.Authenticator.SignCount,
		})
		if err != nil {
			return nil, WrapError(op, err)
		}

		credential.Authenticator.SignCount = result.SignCount
		credential.LastUsedAt = s.now().UTC()
		record.ClearChallenge()

		if err := s.saveRecord(ctx, record, version); err != nil {
			if errors.Is(err, kv.ErrVersionConflict) {
				continue
			}
			return nil, WrapError(op, err)
		}

		result.Username = username
		return result, nil
	}

	return nil, NewError(op, kv.ErrVersionConflict)
}

// Credentials returns all credentials registered for username, in
// registration order. Unknown users yield an empty slice.
func (s *Service) Credentials(ctx context.Context, username string) ([]*CredentialEntry, error) {
	const op = "get credentials"

	if !s.configured {
		return nil, ErrNotConfigured
	}
	if username == "" {
		return nil, NewError(op, ErrUsernameRequired)
	}

	record, _, err := s.loadRecord(ctx, username)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return []*CredentialEntry{}, nil
		}
		return nil, WrapError(op, err)
	}
	return record.Credentials, nil
}

// challengePending reports whether the record carries a consumable
// challenge.
func (s *Service) challengePending(record *UserRecord) bool {
	if record.Challenge == "" {
		return false
	}
	if record.ChallengeIssuedAt.IsZero() {
		return true
	}
	return s.now().Sub(record.ChallengeIssuedAt) <= s.challengeTTL
}

func (s *Service) loadRecord(ctx context.Context, username string) (*UserRecord, uint64, error) {
	value, version, err := s.store.Get(ctx, username)
	if err != nil {
		return nil, 0, err
	}

	var record UserRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, 0, fmt.Errorf("malformed user record: %w", err)
	}
	return &record, version, nil
}

func (s *Service) saveRecord(ctx context.Context, record *UserRecord, version uint64) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}

	_, err = s.store.Put(ctx, record.Username, value, version)
	return err
}

// newChallenge returns a fresh 128-bit challenge, base64url-encoded the
// way it appears in the client data the authenticator signs over.
func newChallenge() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// assertedCredentialID extracts the credential identifier from an encoded
// assertion without parsing the rest of the wire format. Both the W3C
// field names and the legacy credentialId field are accepted.
func assertedCredentialID(assertion []byte) (string, error) {
	var peek struct {
		ID           string `json:"id"`
		RawID        string `json:"rawId"`
		CredentialID string `json:"credentialId"`
	}
	if err := json.Unmarshal(assertion, &peek); err != nil {
		return "", err
	}

	switch {
	case peek.ID != "":
		return peek.ID, nil
	case peek.RawID != "":
		return peek.RawID, nil
	case peek.CredentialID != "":
		return peek.CredentialID, nil
	}
	return "", fmt.Errorf("assertion carries no credential id")
}
