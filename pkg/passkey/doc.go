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

// Package passkey implements the server side of a passwordless
// challenge-response authentication flow: register a public-key credential,
// then authenticate with it.
//
// The package owns the challenge/credential lifecycle. Challenges are
// random, bound to a username, and strictly single-use: issuing a new one
// invalidates the previous one, and consuming one (successfully completing
// a registration or authentication) clears it in the same storage write
// that records the outcome. Credentials accumulate on a single per-user
// record; assertions select a credential by ID and must bind the pending
// challenge, an up-to-date sign counter, and (by default) user
// verification.
//
// Two collaborators are injected at the boundary: a kv.Store for the user
// records and a Verifier for the cryptographic checks. User records are
// versioned, and every read-modify-write is a compare-and-swap, so
// concurrent requests for the same username cannot silently drop a
// registered credential.
//
// Basic usage:
//
//	verifier, _ := engine.New(engine.Config{
//	    RPID:          "example.com",
//	    RPDisplayName: "Example",
//	    Origins:       []string{"https://example.com"},
//	})
//	svc, _ := passkey.NewService(passkey.ServiceParams{
//	    Store:    kv.NewMemoryStore(),
//	    Verifier: verifier,
//	})
//
//	challenge, _ := svc.RegistrationChallenge(ctx, "alice")
//	// send challenge to the browser, receive the signed attestation...
//	cred, _ := svc.CompleteRegistration(ctx, "alice", attestationJSON)
package passkey
