package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// ListActiveLocks — GET /login-attempts
//
// Expiry is lazy, so episodes past their locked_until stay in this list
// until the account's next login attempt or a manual unlock.
func (a *API) ListActiveLocks(w http.ResponseWriter, r *http.Request) {
	locks, err := a.svc.ActiveLocks(r.Context())
	if err != nil {
		a.writeAuthError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"locks":   locks,
	})
}

// Unlock — PUT /login-attempts/unlock/{accountID}
func (a *API) Unlock(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(mux.Vars(r)["accountID"], 10, 64)
	if err != nil || accountID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	if err := a.svc.Unlock(r.Context(), accountID, auditContext(r)); err != nil {
		a.writeAuthError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "account unlocked",
	})
}
