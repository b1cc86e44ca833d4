package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dhishan/family-expense-tracker/internal/core"
	"github.com/dhishan/family-expense-tracker/internal/log"
)

// handleRoot identifies the API.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    apiName,
		"version": apiVersion,
		"status":  "healthy",
	})
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{}

	if s.store == nil {
		checks["storage"] = "not configured"
	} else if err := s.store.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed",
			log.FieldError, err)
		checks["storage"] = "failed"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

type googleAuthRequest struct {
	Token string `json:"token" validate:"required"`
	// TokenType is informational; the verifier recognises the token shape itself.
	TokenType string `json:"token_type" validate:"omitempty,oneof=id_token access_token"`
}

type authResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        core.User `json:"user"`
}

// handleGoogleAuth exchanges a Google token for a session token, creating
// the user on first sign in.
func (s *Server) handleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	var req googleAuthRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if s.verifier == nil {
		writeError(w, r, errors.New("identity verifier not configured"))
		return
	}

	identity, err := s.verifier.Verify(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.svc.Users.SignIn(r.Context(), identity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, exp, err := s.tokens.Issue(user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "User signed in",
		log.FieldUserID, user.ID)
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   exp,
		User:        user,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user core.User) {
	writeJSON(w, http.StatusOK, user)
}

// handleLogout is an acknowledgement only; session tokens are discarded client side.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user core.User) {
	log.FromContext(r.Context()).InfoContext(r.Context(), "User logged out",
		log.FieldUserID, user.ID)
	writeMessage(w, "Logged out successfully")
}

// userHandler is a handler that runs after authentication.
type userHandler func(w http.ResponseWriter, r *http.Request, user core.User)

// requireUser authenticates the bearer token and loads the current user.
func (s *Server) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, r, core.Unauthorized("not authenticated"))
			return
		}
		claims, err := s.tokens.Parse(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		user, err := s.svc.Users.Get(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				err = core.NotFound("user")
			}
			writeError(w, r, err)
			return
		}

		logger := log.FromContext(r.Context()).With(log.FieldUserID, user.ID)
		next(w, r.WithContext(log.NewContext(r.Context(), logger)), user)
	}
}

// requireFamily returns the user's family id, answering 400 when there is none.
func requireFamily(w http.ResponseWriter, r *http.Request, user core.User) (string, bool) {
	familyID, err := user.Family()
	if err != nil {
		writeError(w, r, err)
		return "", false
	}
	return familyID, true
}
