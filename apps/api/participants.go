package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mahaj/commune-chat/pkg/chaterr"
)

type AddParticipantsRequest struct {
	UserIDs []int64 `json:"userIds" validate:"required,min=1,max=100,dive,gt=0"`
}

// AddParticipants handles POST /chats/{groupId}/participants.
func (a *API) AddParticipants(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "groupId"), 10, 64)
	if err != nil || chatID <= 0 {
		a.writeError(w, r, fmt.Errorf("group id: %w", chaterr.ErrInvalid))
		return
	}

	var body AddParticipantsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, r, fmt.Errorf("request body: %w", chaterr.ErrInvalid))
		return
	}
	if err := a.validate.Struct(body); err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.dir.AddParticipants(r.Context(), caller(r), chatID, body.UserIDs); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
