package core

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"seopilot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecoverer_ConvertsPanicTo500(t *testing.T) {
	handler := Recoverer(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_unexpected_error")
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRequestIDMiddleware_GeneratesAndEchoes(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-Id"))
}

func TestRequestIDMiddleware_ReusesIncomingID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("X-Request-Id", "upstream-id-7")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "upstream-id-7", seen)
}

type allowAllVerifier struct{}

func (allowAllVerifier) Verify(_ context.Context, _ string) error { return nil }

type rejectVerifier struct{}

func (rejectVerifier) Verify(_ context.Context, _ string) error {
	return types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid site key", nil)
}

func TestSiteAuth_MissingKeyRejected(t *testing.T) {
	handler := SiteAuthMiddleware(allowAllVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/usage", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSiteAuth_BadKeyRejected(t *testing.T) {
	handler := SiteAuthMiddleware(rejectVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
	r.Header.Set(HeaderSiteKey, "sk_wrong")
	r.Header.Set(HeaderLocalUser, "u-1")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSiteAuth_InjectsActor(t *testing.T) {
	var actor types.Actor
	handler := SiteAuthMiddleware(allowAllVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ = types.GetActor(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
	r.Header.Set(HeaderSiteKey, "sk_good")
	r.Header.Set(HeaderLocalUser, "u-42")

	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "u-42", actor.LocalUserID)
	assert.Equal(t, types.ActorTypeUser, actor.Type)
}

func TestSiteAuth_PublicPathsBypass(t *testing.T) {
	called := false
	handler := SiteAuthMiddleware(rejectVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.True(t, called)
}

func TestSiteAuth_MissingLocalUserRejected(t *testing.T) {
	handler := SiteAuthMiddleware(allowAllVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
	r.Header.Set(HeaderSiteKey, "sk_good")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
