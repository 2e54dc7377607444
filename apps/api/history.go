package main

import (
	"net/http"
)

// History handles GET /chats/{kind}/{id}/messages. For individual chats id is
// the other participant.
func (a *API) History(w http.ResponseWriter, r *http.Request) {
	d, err := descriptorFrom(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	messages, err := a.dir.History(r.Context(), caller(r), d, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
