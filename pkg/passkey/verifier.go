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

import "context"

// Verifier is the boundary to the cryptographic verification engine. The
// coordinator treats it as opaque: it hands over the encoded wire response
// and the expected parameters, and receives either a parsed result or an
// error wrapping ErrVerificationFailed.
//
// The production implementation lives in the engine package and wraps
// go-webauthn. Tests substitute their own.
type Verifier interface {
	// VerifyRegistration validates an encoded attestation response against
	// the expected challenge and returns the parsed credential.
	VerifyRegistration(ctx context.Context, registration []byte, expected Expected) (*CredentialEntry, error)

	// VerifyAuthentication validates an encoded assertion response against
	// the stored credential and expected parameters. It must reject
	// signatures over the wrong challenge, sign counter regressions, and
	// an unmet user-verification requirement.
	VerifyAuthentication(ctx context.Context, assertion []byte, cred *CredentialEntry, expected Expected) (*AssertionResult, error)
}
