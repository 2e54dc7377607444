package main

import (
	"net/http"
)

// ListChats handles GET /chats.
func (a *API) ListChats(w http.ResponseWriter, r *http.Request) {
	convs, err := a.dir.ListConversations(r.Context(), caller(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}
