package handler

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

type HealthHandler struct {
	name    string
	version string
	check   func(ctx context.Context) error
	log     *Logger
}

// NewHealthHandler builds the root and health endpoints. check reports
// whether the database is reachable.
func NewHealthHandler(name, version string, check func(ctx context.Context) error, log *Logger) *HealthHandler {
	return &HealthHandler{
		name:    name,
		version: version,
		check:   check,
		log:     log,
	}
}

func (hh HealthHandler) Root(rw http.ResponseWriter, r *http.Request) {
	respond(r.Context(), rw, http.StatusOK, map[string]string{
		"message": "Welcome to " + hh.name + " API",
		"version": hh.version,
		"docs":    "/docs",
	})
}

func (hh HealthHandler) Health(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := hh.check(ctx); err != nil {
		hh.log.Ctx(ctx).Errorw("Health", "error", err.Error())
		respondErr(ctx, rw, http.StatusServiceUnavailable, errors.New("database unavailable"))
		return
	}

	respond(ctx, rw, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
