package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/mahaj/commune-chat/pkg/auth"
	"github.com/mahaj/commune-chat/pkg/chaterr"
	"github.com/mahaj/commune-chat/pkg/directory"
	"github.com/mahaj/commune-chat/pkg/metrics"
	"github.com/mahaj/commune-chat/pkg/model"
)

// API serves the read side of the chat layer to client bootstrap code.
type API struct {
	dir      *directory.Service
	verifier *auth.Verifier
	metrics  *metrics.Metrics
	log      *slog.Logger
	validate *validator.Validate
}

func NewAPI(dir *directory.Service, verifier *auth.Verifier, m *metrics.Metrics, log *slog.Logger) *API {
	return &API{
		dir:      dir,
		verifier: verifier,
		metrics:  m,
		log:      log,
		validate: validator.New(),
	}
}

func (a *API) Routes(origins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(requestLog{log: a.log}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(a.verifier, a.log, a.metrics.AuthFailures.Inc))

		r.Get("/chats", a.ListChats)
		r.Get("/chats/{kind}/{id}/messages", a.History)
		r.Get("/chats/{kind}/{id}/online", a.Online)
		r.Post("/chats/{groupId}/participants", a.AddParticipants)
		r.Get("/users/search", a.SearchUsers)
	})
	return r
}

// caller returns the authenticated user. The auth middleware guarantees it
// is present on every protected route.
func caller(r *http.Request) int64 {
	claims, _ := auth.FromContext(r.Context())
	return claims.UserID
}

func descriptorFrom(r *http.Request) (model.Descriptor, error) {
	kind := model.Kind(chi.URLParam(r, "kind"))
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || !kind.Valid() {
		return model.Descriptor{}, chaterr.ErrInvalid
	}
	return model.Descriptor{Kind: kind, ID: id}, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, chaterr.ErrInvalid
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the chat error taxonomy onto HTTP statuses. Store failures
// are logged with their cause and reported without it.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation validator.ValidationErrors
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, chaterr.ErrAuth):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, chaterr.ErrAuthorization):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, chaterr.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, chaterr.ErrInvalid):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.As(err, &validation):
		status, msg = http.StatusBadRequest, validation.Error()
	case errors.Is(err, chaterr.ErrStore):
		status, msg = http.StatusServiceUnavailable, "storage unavailable, try again"
	}
	if status >= http.StatusInternalServerError {
		a.log.Error("Request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		a.log.Debug("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
