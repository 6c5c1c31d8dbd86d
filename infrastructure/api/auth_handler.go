//go:generate go run go.uber.org/mock/mockgen -source=auth_handler.go -destination=../../mocks/mock_auth_handler.go -package=mocks
package api

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"
	"whirl/domain"
	"whirl/errors"
)

// IAuthService is what the session endpoints need from the credential store.
type IAuthService interface {
	Register(username, password string) (domain.Identity, error)
	Login(username, password string) (string, domain.Identity, error)
	SessionDuration() time.Duration
}

type AuthHandlerConfig struct {
	CookieName   string
	CookieSecure bool
}

// AuthHandler issues and clears the session cookie the websocket
// handshake later presents.
type AuthHandler struct {
	log     *slog.Logger
	service IAuthService
	config  AuthHandlerConfig
}

func NewAuthHandler(log *slog.Logger, service IAuthService, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{log: log, service: service, config: config}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account.
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.ErrMalformed.Message)
		return
	}

	identity, err := h.service.Register(body.Username, body.Password)
	var reply *errors.ReplyError
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, errors.ErrUsernameTaken.Message)
		return
	case stderrors.Is(err, errors.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, errors.ErrWeakPassword.Message)
		return
	case stderrors.As(err, &reply):
		writeError(w, http.StatusBadRequest, reply.Message)
		return
	default:
		h.log.Error("Registration failed", "user", body.Username, "error", err)
		writeError(w, http.StatusInternalServerError, errors.ErrInternal.Message)
		return
	}

	h.log.Info("Account registered over HTTP", "user", identity.Username)
	writeJSON(w, http.StatusCreated, map[string]string{"user": identity.Username})
}

// Login checks the credentials and sets the session cookie.
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.ErrMalformed.Message)
		return
	}

	token, identity, err := h.service.Login(body.Username, body.Password)
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrCredentials):
		writeError(w, http.StatusUnauthorized, errors.ErrWrongCredentials.Message)
		return
	default:
		h.log.Error("Login failed", "user", body.Username, "error", err)
		writeError(w, http.StatusInternalServerError, errors.ErrInternal.Message)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.config.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.service.SessionDuration().Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"user": identity.Username})
}

// Logout clears the session cookie. Live sockets are not affected.
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
