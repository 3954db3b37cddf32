package handlers

import (
	"net/http"
	"time"
)

// HealthHandler serves liveness probes for the daemon process.
type HealthHandler struct {
	startTime time.Time
}

// NewHealthHandler creates a health handler stamped at the current time.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{startTime: time.Now()}
}

// Liveness handles GET /healthz.
//
// Returns 200 OK as long as the HTTP server is responsive. It does not
// probe the host.Manager or filestore — those are covered by readiness
// once the daemon grows one.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteJSONOK(w, map[string]any{
		"service":    "cfdpd",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	})
}
