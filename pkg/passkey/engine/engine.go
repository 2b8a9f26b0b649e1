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

// Package engine implements the passkey.Verifier boundary on top of the
// go-webauthn library. It decodes the W3C wire formats, runs the
// attestation and assertion ceremonies against the configured relying
// party, and maps every engine rejection to passkey.ErrVerificationFailed.
package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Config configures the relying party the engine verifies against. The
// expected origin is always this configuration, never the inbound
// request's Host header.
type Config struct {
	// RPID is the Relying Party identifier, typically the domain name.
	RPID string `yaml:"id" json:"id"`

	// RPDisplayName is the human-readable name of the Relying Party.
	RPDisplayName string `yaml:"display_name" json:"display_name"`

	// Origins are the allowed origins for ceremony responses.
	Origins []string `yaml:"origins" json:"origins"`
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return fmt.Errorf("RPID is required")
	}
	if c.RPDisplayName == "" {
		return fmt.Errorf("RPDisplayName is required")
	}
	if len(c.Origins) == 0 {
		return fmt.Errorf("at least one origin is required")
	}
	return nil
}

// Engine verifies attestations and assertions using go-webauthn.
type Engine struct {
	webauthn *webauthn.WebAuthn
}

// New creates a verification engine for the given relying party.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.Origins,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	return &Engine{webauthn: wa}, nil
}

// VerifyRegistration validates an encoded attestation response against the
// expected challenge and returns the parsed credential.
func (e *Engine) VerifyRegistration(ctx context.Context, registration []byte, expected passkey.Expected) (*passkey.CredentialEntry, error) {
	var ccr protocol.CredentialCreationResponse
	if err := json.Unmarshal(registration, &ccr); err != nil {
		return nil, fmt.Errorf("%w: malformed attestation response", passkey.ErrVerificationFailed)
	}

	parsed, err := ccr.Parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", passkey.ErrVerificationFailed, err)
	}

	user := &ceremonyUser{name: expected.Username}
	session := webauthn.SessionData{
		Challenge: expected.Challenge,
		UserID:    user.WebAuthnID(),
	}

	credential, err := e.webauthn.CreateCredential(user, session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", passkey.ErrVerificationFailed, err)
	}

	return fromWebAuthnCredential(credential), nil
}

// VerifyAuthentication validates an encoded assertion response against the
// stored credential and expected parameters.
func (e *Engine) VerifyAuthentication(ctx context.Context, assertion []byte, cred *passkey.CredentialEntry, expected passkey.Expected) (*passkey.AssertionResult, error) {
	var car protocol.CredentialAssertionResponse
	if err := json.Unmarshal(assertion, &car); err != nil {
		return nil, fmt.Errorf("%w: malformed assertion response", passkey.ErrVerificationFailed)
	}

	parsed, err := car.Parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", passkey.ErrVerificationFailed, err)
	}

	stored, err := toWebAuthnCredential(cred, expected.Counter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", passkey.ErrVerificationFailed, err)
	}

	user := &ceremonyUser{
		name:        expected.Username,
		credentials: []webauthn.Credential{*stored},
	}

	uv := protocol.VerificationPreferred
	if expected.UserVerificationRequired {
		uv = protocol.VerificationRequired
	}

	session := webauthn.SessionData{
		Challenge:        expected.Challenge,
		UserID:           user.WebAuthnID(),
		UserVerification: uv,
	}

	validated, err := e.webauthn.ValidateLogin(user, session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", passkey.ErrVerificationFailed, err)
	}

	// go-webauthn reports a regressed sign counter as a clone warning
	// rather than a validation error.
	if validated.Authenticator.CloneWarning {
		return nil, fmt.Errorf("%w: sign counter regression", passkey.ErrVerificationFailed)
	}

	flags := parsed.Response.AuthenticatorData.Flags

	return &passkey.AssertionResult{
		Username:     expected.Username,
		CredentialID: base64.RawURLEncoding.EncodeToString(validated.ID),
		SignCount:    validated.Authenticator.SignCount,
		UserPresent:  flags.HasUserPresent(),
		UserVerified: flags.HasUserVerified(),
	}, nil
}

// fromWebAuthnCredential converts a verified go-webauthn credential to the
// coordinator's storage representation.
func fromWebAuthnCredential(wc *webauthn.Credential) *passkey.CredentialEntry {
	return &passkey.CredentialEntry{
		ID:              base64.RawURLEncoding.EncodeToString(wc.ID),
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		Transport:       wc.Transport,
		Flags: passkey.CredentialFlags{
			UserPresent:    wc.Flags.UserPresent,
			UserVerified:   wc.Flags.UserVerified,
			BackupEligible: wc.Flags.BackupEligible,
			BackupState:    wc.Flags.BackupState,
		},
		Authenticator: passkey.AuthenticatorData{
			AAGUID:    wc.Authenticator.AAGUID,
			SignCount: wc.Authenticator.SignCount,
		},
	}
}

// toWebAuthnCredential converts a stored credential entry back to the
// go-webauthn type, with the sign counter the assertion must exceed.
func toWebAuthnCredential(cred *passkey.CredentialEntry, counter uint32) (*webauthn.Credential, error) {
	id, err := base64.RawURLEncoding.DecodeString(cred.ID)
	if err != nil {
		return nil, fmt.Errorf("malformed credential id: %w", err)
	}

	return &webauthn.Credential{
		ID:              id,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		Transport:       cred.Transport,
		Flags: webauthn.CredentialFlags{
			UserPresent:    cred.Flags.UserPresent,
			UserVerified:   cred.Flags.UserVerified,
			BackupEligible: cred.Flags.BackupEligible,
			BackupState:    cred.Flags.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    cred.Authenticator.AAGUID,
			SignCount: counter,
		},
	}, nil
}

// ceremonyUser adapts a username and the selected credential to the
// webauthn.User interface for the duration of one ceremony.
type ceremonyUser struct {
	name        string
	credentials []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return []byte(u.name)
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.name
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.name
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}
