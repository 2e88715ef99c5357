package httpapi

import (
	"errors"
	"net/http"

	"kasirpos.org/internal/audit"
	"kasirpos.org/internal/auth"
	"kasirpos.org/internal/obs"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func auditContext(r *http.Request) audit.Context {
	return audit.Context{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		RequestID: requestIDFromContext(r.Context()),
	}
}

// RegisterAdmin — POST /auth/register-admin
func (a *API) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	res, err := a.svc.RegisterAdmin(r.Context(), req.Username, req.Password, auditContext(r))
	if err != nil {
		a.writeAuthError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "admin registered",
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"user":       accountView(res.Account, res.Roles),
	})
}

// Login — POST /auth/login
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	res, err := a.svc.Login(r.Context(), req.Username, req.Password, auditContext(r))
	if err != nil {
		obs.ObserveLogin(loginOutcome(err))
		if le, locked := auth.IsLocked(err); locked && le.Opened {
			obs.ObserveLockOpened()
		}
		switch {
		case errors.Is(err, auth.ErrNotFound):
			// Back-office UX: the operator is told which field was wrong.
			writeError(w, http.StatusBadRequest, "user not found")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "wrong password")
		default:
			a.writeAuthError(w, err, http.StatusBadRequest)
		}
		return
	}
	obs.ObserveLogin("ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "login success",
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"user":       accountView(res.Account, res.Roles),
	})
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrNotFound):
		return "unknown_user"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "wrong_password"
	default:
		if le, ok := auth.IsLocked(err); ok {
			if le.Opened {
				return "locked"
			}
			return "denied_locked"
		}
		return "error"
	}
}

func accountView(account *auth.Account, roles []auth.RoleID) map[string]any {
	return map[string]any{
		"id":       account.ID,
		"username": account.Username,
		"roles":    roles,
	}
}
