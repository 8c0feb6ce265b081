package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seopilot/internal/core"
	"seopilot/internal/types"
)

// --- Shared helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// actorRequest builds a request carrying the acting user, the way the site
// auth middleware would have left it.
func actorRequest(method, target string, body any) *http.Request {
	var buf io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, target, buf)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	ctx := types.WithActor(r.Context(), types.Actor{
		LocalUserID: "wp-user-1",
		Type:        types.ActorTypeUser,
	})
	return r.WithContext(ctx)
}

func decodeData(t *testing.T, body *bytes.Buffer, dst any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

// --- Mock session layer ---

type mockSessionManager struct {
	session    *types.Session
	err        error
	logoutErr  error
	lastUserID string
	lastEmail  string
}

func (m *mockSessionManager) Register(_ context.Context, localUserID, email, _ string) (*types.Session, error) {
	m.lastUserID, m.lastEmail = localUserID, email
	return m.session, m.err
}

func (m *mockSessionManager) Login(_ context.Context, localUserID, email, _ string) (*types.Session, error) {
	m.lastUserID, m.lastEmail = localUserID, email
	return m.session, m.err
}

func (m *mockSessionManager) Logout(_ context.Context, localUserID string) error {
	m.lastUserID = localUserID
	return m.logoutErr
}

type mockSessionReader struct {
	session *types.Session
	err     error
}

func (m *mockSessionReader) Get(_ context.Context, _ string) (*types.Session, error) {
	return m.session, m.err
}

func newTestAuthHandler(mgr SessionManager, reader SessionReader) *AuthHandler {
	return NewAuthHandler(mgr, reader, testLogger(), core.NewValidator())
}

func makeRouter(registrars ...func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		for _, register := range registrars {
			register(r)
		}
	})
	return r
}

func sampleSession() *types.Session {
	return &types.Session{
		LocalUserID:  "wp-user-1",
		Token:        "tok_abc",
		RemoteUserID: "ru_1",
		Email:        "a@example.com",
		Plan:         types.PlanPro,
		IssuedAt:     time.Now().UTC(),
	}
}

// --- Login ---

func TestHandleLogin_Success(t *testing.T) {
	mgr := &mockSessionManager{session: sampleSession()}
	h := newTestAuthHandler(mgr, &mockSessionReader{})
	router := makeRouter(h.RegisterRoutes)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, actorRequest(http.MethodPost, "/v1/auth/login", LoginRequest{
		Email:    "a@example.com",
		Password: "hunter22",
	}))

	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionResponse
	decodeData(t, w.Body, &resp)
	assert.True(t, resp.Authenticated)
	require.NotNil(t, resp.Session)
	assert.Equal(t, types.PlanPro, resp.Session.Plan)
	assert.Equal(t, "wp-user-1", mgr.lastUserID)
}

func TestHandleLogin_TokenNeverSerialized(t *testing.T) {
	h := newTestAuthHandler(&mockSessionManager{session: sampleSession()}, &mockSessionReader{})
	router := makeRouter(h.RegisterRoutes)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, actorRequest(http.MethodPost, "/v1/auth/login", LoginRequest{
		Email:    "a@example.com",
		Password: "hunter22",
	}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "tok_abc")
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	mgr := &mockSessionManager{
		err: types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil),
	}
	h := newTestAuthHandler(mgr, &mockSessionReader{})
	router := makeRouter(h.RegisterRoutes)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, actorRequest(http.MethodPost, "/v1/auth/login", LoginRequest{
		Email:    "a@example.com",
		Password: "wrong",
	}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeAuthInvalidCreds))
}

func TestHandleLogin_RejectsBadEmail(t *testing.T) {
	mgr := &mockSessionManager{}
	h := newTestAuthHandler(mgr, &mockSessionReader{})
	router := makeRouter(h.RegisterRoutes)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, actorRequest(http.MethodPost, "/v1/auth/login", LoginRequest{
		Email:    "not-an-email",
		Password: "hunter22",
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mgr.lastEmail, "service must not be called on validation failure")
}

func TestHandleLogin_MissingActor(t *testing.T) {
	h := newTestAuthHandler(&mockSessionManager{}, &mockSessionReader{})
	router := makeRouter(h.RegisterRoutes)

	body, _ := json.Marshal(LoginRequest{Email: "a@example.com", Password: "hunter22"})
	r := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Register ---

func TestHandleRegister_Success(t *testing.T) {
	h := newTestAuthHandler(&mockSessionManager{session: sampleSession()}, &mockSessionReader{})
	router := makeRouter(h.RegisterRoutes)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, actorRequest(http.MethodPost, "/v1/auth/register", RegisterRequest{
		Email:    "a@example.com",
		Password: "longenough",
	}))

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHandleRegister_ShortPasswordRejected(t *testing.T) {
	mgr := &mockSessionManager{}
	h := newTestAuthHandler(mgr, &mockSessionReader{})
	router := makeRouter(h.RegisterRoutes)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, actorRequest(http.MethodPost, "/v1/auth/register", RegisterRequest{
		Email:    "a@example.com",
		Password: "short",
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeValidationPassword))
	assert.Empty(t, mgr.lastEmail)
}

func TestHandleRegister_DuplicateAccount(t *testing.T) {
	mgr := &mockSessionManager{
		err: types.NewAppError(types.ErrCodeConflictUserExists, "account already exists", nil),
	}
	h := newTestAuthHandler(mgr, &mockSessionReader{})
	router := makeRouter(h.RegisterRoutes)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, actorRequest(http.MethodPost, "/v1/auth/register", RegisterRequest{
		Email:    "a@example.com",
		Password: "longenough",
	}))

	assert.Equal(t, http.StatusConflict, w.Code)
}

// --- Logout ---

func TestHandleLogout_Success(t *testing.T) {
	mgr := &mockSessionManager{}
	h := newTestAuthHandler(mgr, &mockSessionReader{})
	router := makeRouter(h.RegisterRoutes)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, actorRequest(http.MethodPost, "/v1/auth/logout", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionResponse
	decodeData(t, w.Body, &resp)
	assert.False(t, resp.Authenticated)
	assert.Equal(t, "wp-user-1", mgr.lastUserID)
}

// --- Session status ---

func TestHandleSession_Authenticated(t *testing.T) {
	h := newTestAuthHandler(&mockSessionManager{}, &mockSessionReader{session: sampleSession()})
	router := makeRouter(h.RegisterRoutes)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, actorRequest(http.MethodGet, "/v1/auth/session", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionResponse
	decodeData(t, w.Body, &resp)
	assert.True(t, resp.Authenticated)
}

func TestHandleSession_NoSessionIsNotAnError(t *testing.T) {
	h := newTestAuthHandler(&mockSessionManager{}, &mockSessionReader{session: nil})
	router := makeRouter(h.RegisterRoutes)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, actorRequest(http.MethodGet, "/v1/auth/session", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionResponse
	decodeData(t, w.Body, &resp)
	assert.False(t, resp.Authenticated)
	assert.Nil(t, resp.Session)
}
