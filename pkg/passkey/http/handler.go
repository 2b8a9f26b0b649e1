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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Handler provides HTTP handlers for the passkey endpoints.
// These handlers can be mounted on any HTTP router.
type Handler struct {
	service *passkey.Service
	logger  *slog.Logger
}

// NewHandler creates a new passkey HTTP handler.
func NewHandler(service *passkey.Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// RegisterChallenge handles POST /register/challenge
//
// Request body:
//
//	{"username": "alice"}
//
// Response: the raw challenge token.
func (h *Handler) RegisterChallenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		metrics.RecordOperation(metrics.OpRegisterChallenge, metrics.StatusError)
		h.writeText(w, http.StatusBadRequest, BodyMissingField)
		return
	}

	challenge, err := h.service.RegistrationChallenge(r.Context(), req.Username)
	if err != nil {
		metrics.RecordOperation(metrics.OpRegisterChallenge, metrics.StatusError)
		h.handleServiceError(w, err)
		return
	}

	metrics.RecordOperation(metrics.OpRegisterChallenge, metrics.StatusSuccess)
	h.writeText(w, http.StatusOK, challenge)
}

// RegisterVerify handles POST /register/verify
//
// Request body:
//
//	{"username": "alice", "registration": {...}}
//
// Response: {"status": 200} on success; "expired" when no challenge is
// pending.
func (h *Handler) RegisterVerify(w http.ResponseWriter, r *http.Request) {
	var req RegisterVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || len(req.Registration) == 0 {
		metrics.RecordOperation(metrics.OpRegisterVerify, metrics.StatusError)
		h.writeText(w, http.StatusBadRequest, BodyMissingField)
		return
	}

	if _, err := h.service.CompleteRegistration(r.Context(), req.Username, req.Registration); err != nil {
		metrics.RecordOperation(metrics.OpRegisterVerify, metrics.StatusError)
		h.handleServiceError(w, err)
		return
	}

	metrics.RecordOperation(metrics.OpRegisterVerify, metrics.StatusSuccess)
	h.writeJSON(w, http.StatusOK, RegisterVerifyResponse{Status: http.StatusOK})
}

// LoginChallenge handles POST /login/challenge
//
// Request body:
//
//	{"username": "alice"}
//
// Response: {"challenge": ..., "credentialIds": [...]}. A user with no
// registered credentials gets a 404.
func (h *Handler) LoginChallenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		metrics.RecordOperation(metrics.OpLoginChallenge, metrics.StatusError)
		h.writeText(w, http.StatusBadRequest, BodyMissingField)
		return
	}

	result, err := h.service.LoginChallenge(r.Context(), req.Username)
	if err != nil {
		metrics.RecordOperation(metrics.OpLoginChallenge, metrics.StatusError)
		h.handleServiceError(w, err)
		return
	}

	metrics.RecordOperation(metrics.OpLoginChallenge, metrics.StatusSuccess)
	h.writeJSON(w, http.StatusOK, LoginChallengeResponse{
		Challenge:     result.Challenge,
		CredentialIDs: result.CredentialIDs,
	})
}

// LoginVerify handles POST /login/verify
//
// Request body:
//
//	{"username": "alice", "authentication": {...}}
//
// Response: {"data": {...}} with the verified assertion result.
func (h *Handler) LoginVerify(w http.ResponseWriter, r *http.Request) {
	var req LoginVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || len(req.Authentication) == 0 {
		metrics.RecordOperation(metrics.OpLoginVerify, metrics.StatusError)
		h.writeText(w, http.StatusBadRequest, BodyMissingField)
		return
	}

	result, err := h.service.CompleteAuthentication(r.Context(), req.Username, req.Authentication)
	if err != nil {
		metrics.RecordOperation(metrics.OpLoginVerify, metrics.StatusError)
		h.handleServiceError(w, err)
		return
	}

	metrics.RecordOperation(metrics.OpLoginVerify, metrics.StatusSuccess)
	h.writeJSON(w, http.StatusOK, LoginVerifyResponse{Data: result})
}

// Hello handles every unrouted path.
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	h.writeText(w, http.StatusOK, BodyHello)
}

// handleServiceError maps service errors to HTTP responses. Verification
// failures deliberately share one generic body: the engine's reason is
// logged, never returned.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case passkey.IsValidation(err):
		h.writeText(w, http.StatusBadRequest, BodyMissingField)
	case errors.Is(err, passkey.ErrChallengeExpired):
		h.writeText(w, http.StatusBadRequest, BodyChallengeExpired)
	case errors.Is(err, passkey.ErrNoCredentials):
		h.writeJSON(w, http.StatusNotFound, StatusResponse{Status: http.StatusNotFound})
	case errors.Is(err, passkey.ErrCredentialNotFound):
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: ErrorCodeCredentialNotFound})
	case errors.Is(err, passkey.ErrCredentialExists):
		h.writeJSON(w, http.StatusConflict, ErrorResponse{Error: ErrorCodeCredentialExists})
	case errors.Is(err, passkey.ErrVerificationFailed):
		h.logger.Warn("verification rejected", "error", err)
		h.writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: ErrorCodeVerificationFailed})
	default:
		h.logger.Error("passkey operation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorCodeInternalError})
	}
}

// setCommonHeaders applies the permissive cross-origin and no-cache
// headers every response carries.
func setCommonHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	setCommonHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeText writes a plain text response.
func (h *Handler) writeText(w http.ResponseWriter, status int, body string) {
	setCommonHeaders(w)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
