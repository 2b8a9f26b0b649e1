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

// Package http exposes the passkey service over the wire protocol spoken
// by the browser client: four POST endpoints for the registration and
// login ceremonies, plus a hello fallback for everything else. Responses
// carry permissive cross-origin headers and disable caching.
//
// Failures map to distinct statuses and bodies so the client can decide
// whether to restart the challenge step: "miss" for missing fields,
// "expired" for a consumed or never-issued challenge, 404 when login is
// attempted without registered credentials, and a generic
// verification_failed code whenever the engine rejects a proof.
package http
