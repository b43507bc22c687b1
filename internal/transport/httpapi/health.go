package httpapi

import (
	"context"
	"net/http"
	"time"
)

// Probe checks one dependency. A failing critical probe makes the service
// unready; a failing optional one only degrades it.
type Probe struct {
	Name     string
	Check    func(ctx context.Context) error
	Critical bool
}

type HealthHandler struct {
	probes  []Probe
	version string
}

func NewHealthHandler(version string, probes ...Probe) *HealthHandler {
	return &HealthHandler{probes: probes, version: version}
}

type livenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, livenessResponse{Status: "ok", Version: h.version})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.probes))
	status := "ok"
	for _, p := range h.probes {
		pctx, pcancel := context.WithTimeout(ctx, time.Second)
		err := p.Check(pctx)
		pcancel()
		if err == nil {
			deps[p.Name] = "ok"
			continue
		}
		deps[p.Name] = "down"
		switch {
		case p.Critical:
			status = "error"
		case status == "ok":
			status = "degraded"
		}
	}

	code := http.StatusOK
	if status == "error" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, readinessResponse{Status: status, Version: h.version, Dependencies: deps})
}
