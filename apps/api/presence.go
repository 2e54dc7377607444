package main

import (
	"net/http"
)

// Online handles GET /chats/{kind}/{id}/online.
func (a *API) Online(w http.ResponseWriter, r *http.Request) {
	d, err := descriptorFrom(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ids, err := a.dir.Online(r.Context(), caller(r), d)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}
