package api

import (
	"net/http"

	"github.com/wrenhollow/continuity/internal/registry"
)

// HealthResponse reports aggregate health across every materialized
// agent's storage.
type HealthResponse struct {
	Status string            `json:"status"`
	Agents map[string]string `json:"agents"`
}

type HealthHandler struct {
	reg *registry.Registry
}

func NewHealthHandler(reg *registry.Registry) *HealthHandler {
	return &HealthHandler{reg: reg}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Agents: map[string]string{}}

	for _, a := range h.reg.Agents() {
		if _, err := h.reg.Get(r.Context(), a.AgentID); err != nil {
			resp.Agents[a.AgentID] = "error: " + err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Agents[a.AgentID] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
