// Package handler implements the authentication HTTP endpoints and the
// bearer-token middleware protecting the rest of the API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/RonTitans/BillFlow/internal/domain/auth/service"
	"github.com/RonTitans/BillFlow/pkg/server"
)

// AuthHandler serves login and token verification.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler constructs a new handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		server.Error(w, http.StatusBadRequest, "username and password are required")
		return
	}

	result, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrAccountInactive) {
			server.Error(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		h.logger.Error("login failed", slog.Any("error", err))
		server.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	server.JSON(w, http.StatusOK, loginResponse{
		Token: result.Token,
		User: userResponse{
			ID:          result.User.ID.String(),
			Username:    result.User.Username,
			DisplayName: result.User.DisplayName,
		},
	})
}

// VerifyToken handles GET /api/auth/verify. It answers for the token in
// the Authorization header, so a client can check a stored token on load.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		server.Error(w, http.StatusUnauthorized, "missing token")
		return
	}

	user, err := h.svc.Verify(r.Context(), token)
	if err != nil {
		server.Error(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	server.JSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"user": userResponse{
			ID:          user.ID.String(),
			Username:    user.Username,
			DisplayName: user.DisplayName,
		},
	})
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return ""
}
