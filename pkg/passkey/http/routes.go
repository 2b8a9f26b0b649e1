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

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi mounts the passkey routes on a chi router. Unrouted paths fall
// through to the hello handler, matching the original wire protocol.
//
// Example:
//
//	handler := passkeyhttp.NewHandler(svc)
//	r := chi.NewRouter()
//	passkeyhttp.MountChi(r, handler)
func MountChi(r chi.Router, h *Handler) {
	r.Post("/register/challenge", h.RegisterChallenge)
	r.Post("/register/verify", h.RegisterVerify)
	r.Post("/login/challenge", h.LoginChallenge)
	r.Post("/login/verify", h.LoginVerify)
	r.NotFound(h.Hello)
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns a slice of route entries for manual mounting on routers
// not directly supported.
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: "POST", Path: "/register/challenge", Handler: h.RegisterChallenge},
		{Method: "POST", Path: "/register/verify", Handler: h.RegisterVerify},
		{Method: "POST", Path: "/login/challenge", Handler: h.LoginChallenge},
		{Method: "POST", Path: "/login/verify", Handler: h.LoginVerify},
	}
}
