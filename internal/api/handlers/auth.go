// Package handlers contains the HTTP handler implementations for the
// connector's plugin-facing API.
//
// Each handler is responsible for:
//   - Decoding and validating HTTP requests
//   - Delegating to service-layer logic
//   - Encoding responses and HTTP-specific concerns
//
// All handlers except the billing webhook run behind the site auth
// middleware, so the acting CMS user is always available on the context.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seopilot/internal/core"
	"seopilot/internal/types"
)

// RegisterRequest is the request body for POST /v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the request body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse is the session view returned by auth endpoints. The
// backend token never leaves the connector.
type SessionResponse struct {
	Authenticated bool           `json:"authenticated"`
	Session       *types.Session `json:"session,omitempty"`
}

// SessionManager drives login and logout against the remote backend.
// Implemented by session.Manager.
type SessionManager interface {
	Register(ctx context.Context, localUserID, email, password string) (*types.Session, error)
	Login(ctx context.Context, localUserID, email, password string) (*types.Session, error)
	Logout(ctx context.Context, localUserID string) error
}

// SessionReader reads the locally persisted session. Implemented by
// session.Store.
type SessionReader interface {
	Get(ctx context.Context, localUserID string) (*types.Session, error)
}

// AuthHandler maps HTTP requests to the session layer.
type AuthHandler struct {
	manager   SessionManager
	sessions  SessionReader
	logger    *slog.Logger
	validator *core.Validator
}

func NewAuthHandler(manager SessionManager, sessions SessionReader, logger *slog.Logger, validator *core.Validator) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		manager:   manager,
		sessions:  sessions,
		logger:    logger,
		validator: validator,
	}
}

// RegisterRoutes mounts the auth endpoints:
//
//   - POST /auth/register - create a backend account and sign in
//   - POST /auth/login    - sign in an existing account
//   - POST /auth/logout   - revoke the backend token and clear local state
//   - GET  /auth/session  - current session status
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/auth/session", h.HandleSession)
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	var req RegisterRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	session, err := h.manager.Register(r.Context(), actor.LocalUserID, req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: SessionResponse{
		Authenticated: session.Authenticated(),
		Session:       session,
	}})
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	var req LoginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	session, err := h.manager.Login(r.Context(), actor.LocalUserID, req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: SessionResponse{
		Authenticated: session.Authenticated(),
		Session:       session,
	}})
}

// HandleLogout always clears the local session. A backend that cannot be
// reached does not keep the user signed in.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	if err := h.manager.Logout(r.Context(), actor.LocalUserID); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: SessionResponse{Authenticated: false}})
}

// HandleSession reports the current session without talking to the backend.
// An absent or expired session is a 200 with authenticated=false, not an
// error; the plugin uses this to decide which UI to render.
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.Get(r.Context(), actor.LocalUserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: SessionResponse{
		Authenticated: session.Authenticated(),
		Session:       session,
	}})
}
