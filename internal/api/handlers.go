package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wrenhollow/continuity/internal/config"
	"github.com/wrenhollow/continuity/internal/models"
	"github.com/wrenhollow/continuity/internal/registry"
)

// AdminHandler implements spec.md §6's administrative methods:
// getState, getConfig, search, getArchiveStats, getTopics, listAgents.
type AdminHandler struct {
	reg *registry.Registry
	cfg *config.Config
}

func NewAdminHandler(reg *registry.Registry, cfg *config.Config) *AdminHandler {
	return &AdminHandler{reg: reg, cfg: cfg}
}

func (h *AdminHandler) agentID(r *http.Request) string {
	if id := r.URL.Query().Get("agentId"); id != "" {
		return id
	}
	return ""
}

type getStateResponse struct {
	ArchiveStats  any     `json:"archiveStats"`
	Topics        any     `json:"topics"`
	Anchors       any     `json:"anchors"`
	ExchangeCount int     `json:"exchangeCount"`
	SessionAgeSec float64 `json:"sessionAge"`
	IndexReady    bool    `json:"indexReady"`
}

func (h *AdminHandler) GetState(w http.ResponseWriter, r *http.Request) {
	st, err := h.reg.Get(r.Context(), h.agentID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stats, _ := st.Archiver.GetStats()
	count, _ := st.DB.ExchangeCount()

	writeJSON(w, http.StatusOK, getStateResponse{
		ArchiveStats:  stats,
		Topics:        st.Topics.Topics(),
		Anchors:       st.Anchors.Anchors(),
		ExchangeCount: count,
		SessionAgeSec: sessionAgeSeconds(st.SessionStart),
		IndexReady:    true,
	})
}

// sessionAgeSeconds reports how long ago session_start fired, or 0 if
// it never has (a fresh agent with no recorded session).
func sessionAgeSeconds(s models.SessionState) float64 {
	if s.SessionStart.IsZero() {
		return 0
	}
	return time.Since(s.SessionStart).Seconds()
}

func (h *AdminHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg)
}

type searchRequest struct {
	Text    string `json:"text"`
	Query   string `json:"query"`
	Limit   int    `json:"limit"`
	AgentID string `json:"agentId"`
}

type searchResponse struct {
	Exchanges []models.Exchange `json:"exchanges"`
	Distances []float64         `json:"distances"`
}

func (h *AdminHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	query := req.Query
	if query == "" {
		query = req.Text
	}
	if query == "" {
		writeError(w, http.StatusBadRequest, "text or query is required")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	st, err := h.reg.Get(r.Context(), req.AgentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := st.Searcher.Search(query, limit)
	resp := searchResponse{
		Exchanges: make([]models.Exchange, 0, len(results)),
		Distances: make([]float64, 0, len(results)),
	}
	for _, r := range results {
		resp.Exchanges = append(resp.Exchanges, r.Exchange)
		resp.Distances = append(resp.Distances, r.Distance)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) GetArchiveStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.reg.Get(r.Context(), h.agentID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats, err := st.Archiver.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type topicsResponse struct {
	Topics  map[string]*models.Topic `json:"topics"`
	Fixated map[string]*models.Topic `json:"fixated"`
}

func (h *AdminHandler) GetTopics(w http.ResponseWriter, r *http.Request) {
	st, err := h.reg.Get(r.Context(), h.agentID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, topicsResponse{
		Topics:  st.Topics.Topics(),
		Fixated: st.Topics.Fixated(),
	})
}

func (h *AdminHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.Agents())
}
