package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"kasirpos.org/internal/auth"
)

type createUserRequest struct {
	Username string        `json:"username"`
	Password string        `json:"password"`
	RoleIDs  []auth.RoleID `json:"role_ids"`
}

// CreateUser — POST /users
func (a *API) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	res, err := a.svc.CreateAccount(r.Context(), req.Username, req.Password, req.RoleIDs, auditContext(r))
	if err != nil {
		a.writeAuthError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "user created",
		"user":    accountView(res.Account, res.Roles),
	})
}

// ListUsers — GET /users
func (a *API) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.svc.ListAccounts(r.Context())
	if err != nil {
		a.writeAuthError(w, err, http.StatusNotFound)
		return
	}
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, accountView(u.Account, u.Roles))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   out,
	})
}

type updateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UpdateUser — PUT /users/{id}
func (a *API) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := a.svc.UpdateAccount(r.Context(), id, req.Username, req.Password, auditContext(r)); err != nil {
		a.writeAuthError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "user updated",
	})
}

// DeleteUser — DELETE /users/{id}
func (a *API) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := a.svc.DeleteAccount(r.Context(), id, auditContext(r)); err != nil {
		a.writeAuthError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "user deleted",
	})
}
