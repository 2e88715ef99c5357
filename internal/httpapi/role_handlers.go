package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"kasirpos.org/internal/auth"
)

// ListRoles — GET /roles
func (a *API) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.registry.Roles(r.Context())
	if err != nil {
		a.writeAuthError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"roles":   roles,
	})
}

// RolesOf — GET /user-roles/{accountID}
func (a *API) RolesOf(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(mux.Vars(r)["accountID"], 10, 64)
	if err != nil || accountID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	roleIDs, err := a.registry.RolesOf(r.Context(), accountID)
	if err != nil {
		a.writeAuthError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"user_id":  accountID,
		"role_ids": roleIDs,
	})
}

type replaceRolesRequest struct {
	UserID  int64         `json:"user_id"`
	RoleIDs []auth.RoleID `json:"role_ids"`
}

// ReplaceRoles — PUT /user-roles
//
// Installs role_ids as the account's complete role set. An empty set is
// rejected here: an account must keep at least one role.
func (a *API) ReplaceRoles(w http.ResponseWriter, r *http.Request) {
	var req replaceRolesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.RoleIDs) == 0 {
		writeError(w, http.StatusBadRequest, "role_ids must not be empty")
		return
	}
	if err := a.registry.ReplaceAll(r.Context(), req.UserID, req.RoleIDs, auditContext(r)); err != nil {
		a.writeAuthError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "roles replaced",
	})
}

type rolePairRequest struct {
	UserID int64       `json:"user_id"`
	RoleID auth.RoleID `json:"role_id"`
}

// AssignRole — POST /user-roles
func (a *API) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req rolePairRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := a.registry.AssignOne(r.Context(), req.UserID, req.RoleID, auditContext(r)); err != nil {
		a.writeAuthError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "role assigned",
	})
}

// RemoveRole — DELETE /user-roles
func (a *API) RemoveRole(w http.ResponseWriter, r *http.Request) {
	var req rolePairRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := a.registry.RemoveOne(r.Context(), req.UserID, req.RoleID, auditContext(r)); err != nil {
		a.writeAuthError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "role removed",
	})
}
