package main

import (
	"net/http"
)

// SearchUsers handles GET /users/search?username=&limit=.
func (a *API) SearchUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	users, err := a.dir.SearchUsers(r.Context(), r.URL.Query().Get("username"), limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
