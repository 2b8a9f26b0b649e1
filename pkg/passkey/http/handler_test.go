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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/kv"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// stubVerifier accepts every ceremony and mints fixed credentials.
type stubVerifier struct {
	credentialID    string
	registrationErr error
	authErr         error
	signCount       uint32
}

func (s *stubVerifier) VerifyRegistration(ctx context.Context, registration []byte, expected passkey.Expected) (*passkey.CredentialEntry, error) {
	if s.registrationErr != nil {
		return nil, s.registrationErr
	}
	id := s.credentialID
	if id == "" {
		id = "cred-1"
	}
	return &passkey.CredentialEntry{
		ID:              id,
		PublicKey:       []byte("key"),
		AttestationType: "none",
	}, nil
}

func (s *stubVerifier) VerifyAuthentication(ctx context.Context, assertion []byte, credential *passkey.CredentialEntry, expected passkey.Expected) (*passkey.AssertionResult, error) {
	if s.authErr != nil {
		return nil, s.authErr
	}
	return &passkey.AssertionResult{
		CredentialID: credential.ID,
		SignCount:    s.signCount,
		UserPresent:  true,
		UserVerified: true,
	}, nil
}

func newTestHandler(t *testing.T) (*Handler, *stubVerifier) {
	t.Helper()

	verifier := &stubVerifier{signCount: 1}
	svc, err := passkey.NewService(passkey.ServiceParams{
		Store:    kv.NewMemoryStore(),
		Verifier: verifier,
	})
	require.NoError(t, err)

	return NewHandler(svc), verifier
}

func newTestRouter(t *testing.T) (*chi.Mux, *stubVerifier) {
	t.Helper()

	h, verifier := newTestHandler(t)
	r := chi.NewRouter()
	MountChi(r, h)
	return r, verifier
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// registerUser walks a user through registration over HTTP and returns
// the issued challenge token.
func registerUser(t *testing.T, r http.Handler, username string) string {
	t.Helper()

	rec := post(r, "/register/challenge", fmt.Sprintf(`{"username":%q}`, username))
	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Body.String()
	require.NotEmpty(t, token)

	rec = post(r, "/register/verify",
		fmt.Sprintf(`{"username":%q,"registration":{"id":"cred-1","rawId":"cred-1"}}`, username))
	require.Equal(t, http.StatusOK, rec.Code)

	return token
}

func TestRegisterChallenge(t *testing.T) {
	r, _ := newTestRouter(t)

	t.Run("missing username", func(t *testing.T) {
		rec := post(r, "/register/challenge", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, BodyMissingField, rec.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := post(r, "/register/challenge", `not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, BodyMissingField, rec.Body.String())
	})

	t.Run("issues raw token", func(t *testing.T) {
		rec := post(r, "/register/challenge", `{"username":"alice"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	})

	t.Run("sets cross-origin headers", func(t *testing.T) {
		rec := post(r, "/register/challenge", `{"username":"alice"}`)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Cache-Control"), "no-cache")
	})
}

func TestRegisterVerify(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		r, _ := newTestRouter(t)

		for _, body := range []string{
			`{}`,
			`{"username":"alice"}`,
			`{"registration":{"id":"x"}}`,
		} {
			rec := post(r, "/register/verify", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, BodyMissingField, rec.Body.String())
		}
	})

	t.Run("no pending challenge", func(t *testing.T) {
		r, _ := newTestRouter(t)

		rec := post(r, "/register/verify", `{"username":"ghost","registration":{"id":"x"}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, BodyChallengeExpired, rec.Body.String())
	})

	t.Run("success", func(t *testing.T) {
		r, _ := newTestRouter(t)

		post(r, "/register/challenge", `{"username":"alice"}`)
		rec := post(r, "/register/verify", `{"username":"alice","registration":{"id":"cred-1"}}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":200}`, rec.Body.String())
	})

	t.Run("replay is rejected", func(t *testing.T) {
		r, _ := newTestRouter(t)
		registerUser(t, r, "alice")

		rec := post(r, "/register/verify", `{"username":"alice","registration":{"id":"cred-1"}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, BodyChallengeExpired, rec.Body.String())
	})

	t.Run("duplicate credential", func(t *testing.T) {
		r, _ := newTestRouter(t)
		registerUser(t, r, "alice")

		post(r, "/register/challenge", `{"username":"alice"}`)
		rec := post(r, "/register/verify", `{"username":"alice","registration":{"id":"cred-1"}}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.JSONEq(t, `{"error":"credential_exists"}`, rec.Body.String())
	})

	t.Run("verification failure", func(t *testing.T) {
		r, verifier := newTestRouter(t)
		verifier.registrationErr = fmt.Errorf("%w: origin mismatch", passkey.ErrVerificationFailed)

		post(r, "/register/challenge", `{"username":"alice"}`)
		rec := post(r, "/register/verify", `{"username":"alice","registration":{"id":"cred-1"}}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		// The engine's reason must never leak into the response body.
		assert.JSONEq(t, `{"error":"verification_failed"}`, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "origin")
	})
}

func TestLoginChallenge(t *testing.T) {
	t.Run("missing username", func(t *testing.T) {
		r, _ := newTestRouter(t)

		rec := post(r, "/login/challenge", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, BodyMissingField, rec.Body.String())
	})

	t.Run("no credentials", func(t *testing.T) {
		r, _ := newTestRouter(t)

		rec := post(r, "/login/challenge", `{"username":"ghost"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"status":404}`, rec.Body.String())
	})

	t.Run("success", func(t *testing.T) {
		r, _ := newTestRouter(t)
		registerUser(t, r, "alice")

		rec := post(r, "/login/challenge", `{"username":"alice"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp LoginChallengeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Challenge)
		assert.Equal(t, []string{"cred-1"}, resp.CredentialIDs)
	})
}

func TestLoginVerify(t *testing.T) {
	login := func(t *testing.T, r http.Handler, username string) {
		t.Helper()
		rec := post(r, "/login/challenge", fmt.Sprintf(`{"username":%q}`, username))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	t.Run("missing fields", func(t *testing.T) {
		r, _ := newTestRouter(t)

		rec := post(r, "/login/verify", `{"username":"alice"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, BodyMissingField, rec.Body.String())
	})

	t.Run("no pending challenge", func(t *testing.T) {
		r, _ := newTestRouter(t)
		registerUser(t, r, "alice")

		rec := post(r, "/login/verify", `{"username":"alice","authentication":{"id":"cred-1"}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, BodyChallengeExpired, rec.Body.String())
	})

	t.Run("unknown credential", func(t *testing.T) {
		r, _ := newTestRouter(t)
		registerUser(t, r, "alice")
		login(t, r, "alice")

		rec := post(r, "/login/verify", `{"username":"alice","authentication":{"id":"cred-9"}}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"credential_not_found"}`, rec.Body.String())
	})

	t.Run("verification failure", func(t *testing.T) {
		r, verifier := newTestRouter(t)
		registerUser(t, r, "alice")
		login(t, r, "alice")

		verifier.authErr = fmt.Errorf("%w: counter regression", passkey.ErrVerificationFailed)

		rec := post(r, "/login/verify", `{"username":"alice","authentication":{"id":"cred-1"}}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"verification_failed"}`, rec.Body.String())
	})

	t.Run("success wraps assertion result", func(t *testing.T) {
		r, verifier := newTestRouter(t)
		registerUser(t, r, "alice")
		login(t, r, "alice")

		verifier.signCount = 5

		rec := post(r, "/login/verify", `{"username":"alice","authentication":{"id":"cred-1"}}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data passkey.AssertionResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "alice", resp.Data.Username)
		assert.Equal(t, "cred-1", resp.Data.CredentialID)
		assert.Equal(t, uint32(5), resp.Data.SignCount)
	})
}

func TestHelloFallback(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, BodyHello, rec.Body.String())
}

// TestEndToEnd walks the full ceremony sequence over HTTP: register a
// credential, then authenticate with it.
func TestEndToEnd(t *testing.T) {
	r, _ := newTestRouter(t)

	// Registration
	rec := post(r, "/register/challenge", `{"username":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.String())

	rec = post(r, "/register/verify", `{"username":"alice","registration":{"id":"cred-1"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200}`, rec.Body.String())

	// Authentication
	rec = post(r, "/login/challenge", `{"username":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var challenge LoginChallengeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &challenge))
	require.Equal(t, []string{"cred-1"}, challenge.CredentialIDs)

	rec = post(r, "/login/verify", `{"username":"alice","authentication":{"id":"cred-1"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data"`)
}

func TestRoutes(t *testing.T) {
	h, _ := newTestHandler(t)

	routes := h.Routes()
	require.Len(t, routes, 4)

	paths := make([]string, len(routes))
	for i, route := range routes {
		assert.Equal(t, "POST", route.Method)
		assert.NotNil(t, route.Handler)
		paths[i] = route.Path
	}
	assert.Equal(t, []string{
		"/register/challenge",
		"/register/verify",
		"/login/challenge",
		"/login/verify",
	}, paths)
}
