package handler

import (
	"net/http"

	"github.com/dtroode/cardbook-server/internal/api/http/response"
	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
)

// System serves the banner, health probes and the fallback route.
type System struct {
	version string
	ready   model.ReadyFunc
	logger  *logger.Logger
}

// NewSystem creates a new System handler. A nil ready func always reports ready.
func NewSystem(version string, ready model.ReadyFunc, logger *logger.Logger) *System {
	return &System{version: version, ready: ready, logger: logger}
}

// Index handles GET /.
func (h *System) Index(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, "Business Card System API", map[string]string{"version": h.version})
}

// NotFound answers every unmatched route.
func (h *System) NotFound(w http.ResponseWriter, _ *http.Request) {
	response.Error(w, http.StatusNotFound, "route not found")
}

// Healthz handles GET /healthz.
func (h *System) Healthz(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, "ok", nil)
}

// Readyz handles GET /readyz.
func (h *System) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Warn("System handler: not ready", "error", err.Error())
			response.Error(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	response.Success(w, "ready", nil)
}
