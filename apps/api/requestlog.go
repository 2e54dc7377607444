package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// requestLog routes chi's request logging through slog.
type requestLog struct {
	log *slog.Logger
}

func (l requestLog) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &requestEntry{ctx: r.Context(), log: l.log.With(
		"request", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)}
}

type requestEntry struct {
	ctx context.Context
	log *slog.Logger
}

func (e *requestEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ any) {
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	e.log.Log(e.ctx, level, "Served request", "status", status, "bytes", bytes, "elapsed", elapsed)
}

func (e *requestEntry) Panic(v any, stack []byte) {
	e.log.Error("Request panicked", "panic", v, "stack", string(stack))
}
