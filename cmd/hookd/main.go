// Command hookd is a stdio JSON-lines adapter for hosts that cannot
// embed this module directly: it reads one request object per line on
// stdin and writes one response object per line on stdout, dispatching
// to the same registry-backed components cmd/server wires over HTTP.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/wrenhollow/continuity/internal/config"
	"github.com/wrenhollow/continuity/internal/embedding"
	"github.com/wrenhollow/continuity/internal/host"
	"github.com/wrenhollow/continuity/internal/models"
	"github.com/wrenhollow/continuity/internal/registry"
)

// request is the JSON-lines envelope: {"method": "...", "params": {...}}.
type request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// response is the JSON-lines envelope written back for every request.
type response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	var providers []embedding.Provider
	if cfg.Embedding.OllamaEndpoint != "" {
		providers = append(providers, embedding.NewOllamaProvider(cfg.Embedding.OllamaEndpoint, cfg.Embedding.Model))
	}
	providers = append(providers,
		embedding.NewHTTPProvider(cfg.Embedding.Endpoint, cfg.Embedding.Model, 5),
		embedding.NewFeatureExtractionProvider(cfg.Embedding.Dimensions),
	)
	embedChain := embedding.NewChain(providers...)
	reg := registry.New(cfg, embedChain, logger)

	d := &dispatcher{reg: reg, cfg: cfg, logger: logger}

	scanner := bufio.NewScanner(os.Stdin)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			writeResponse(out, response{Error: "parse error: " + err.Error()})
			continue
		}
		result, err := d.dispatch(context.Background(), req)
		if err != nil {
			writeResponse(out, response{Error: err.Error()})
			continue
		}
		writeResponse(out, response{Result: result})
	}
	if err := scanner.Err(); err != nil {
		logger.Error("hookd stdin read error", "error", err)
		os.Exit(1)
	}
}

func writeResponse(w *bufio.Writer, resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	w.Write(data)
	w.WriteByte('\n')
	w.Flush()
}

// dispatcher implements host.Lifecycle and host.Administrative by
// delegating to the per-agent Storage bundle the registry builds.
type dispatcher struct {
	reg    *registry.Registry
	cfg    *config.Config
	logger *slog.Logger
}

var _ host.Lifecycle = (*dispatcher)(nil)
var _ host.Administrative = (*dispatcher)(nil)

func (d *dispatcher) dispatch(ctx context.Context, req request) (any, error) {
	switch req.Method {
	case "before_agent_start":
		var ev host.BeforeAgentStartEvent
		if err := json.Unmarshal(req.Params, &ev); err != nil {
			return nil, fmt.Errorf("decode before_agent_start params: %w", err)
		}
		return d.BeforeAgentStart(ev)
	case "before_tool_call":
		var ev host.BeforeToolCallEvent
		if err := json.Unmarshal(req.Params, &ev); err != nil {
			return nil, fmt.Errorf("decode before_tool_call params: %w", err)
		}
		return nil, d.BeforeToolCall(ev)
	case "after_tool_call":
		var ev host.AfterToolCallEvent
		if err := json.Unmarshal(req.Params, &ev); err != nil {
			return nil, fmt.Errorf("decode after_tool_call params: %w", err)
		}
		return nil, d.AfterToolCall(ev)
	case "tool_result_persist":
		var ev host.ToolResultPersistEvent
		if err := json.Unmarshal(req.Params, &ev); err != nil {
			return nil, fmt.Errorf("decode tool_result_persist params: %w", err)
		}
		return d.ToolResultPersist(ev)
	case "agent_end":
		var ev host.AgentEndEvent
		if err := json.Unmarshal(req.Params, &ev); err != nil {
			return nil, fmt.Errorf("decode agent_end params: %w", err)
		}
		return nil, d.AgentEnd(ev)
	case "before_compaction":
		var ev host.BeforeCompactionEvent
		if err := json.Unmarshal(req.Params, &ev); err != nil {
			return nil, fmt.Errorf("decode before_compaction params: %w", err)
		}
		return nil, d.BeforeCompaction(ev)
	case "session_start":
		var ev host.SessionStartEvent
		if err := json.Unmarshal(req.Params, &ev); err != nil {
			return nil, fmt.Errorf("decode session_start params: %w", err)
		}
		return nil, d.SessionStart(ev)
	case "session_end":
		var ev host.SessionEndEvent
		if err := json.Unmarshal(req.Params, &ev); err != nil {
			return nil, fmt.Errorf("decode session_end params: %w", err)
		}
		return nil, d.SessionEnd(ev)
	case "getState":
		var p struct {
			AgentID string `json:"agentId"`
		}
		_ = json.Unmarshal(req.Params, &p)
		return d.GetState(p.AgentID)
	case "getConfig":
		return d.GetConfig()
	case "search":
		var p host.SearchRequest
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, fmt.Errorf("decode search params: %w", err)
		}
		return d.Search(p)
	case "getArchiveStats":
		var p struct {
			AgentID string `json:"agentId"`
		}
		_ = json.Unmarshal(req.Params, &p)
		return d.GetArchiveStats(p.AgentID)
	case "getTopics":
		var p struct {
			AgentID string `json:"agentId"`
		}
		_ = json.Unmarshal(req.Params, &p)
		return d.GetTopics(p.AgentID)
	case "listAgents":
		return d.ListAgents()
	default:
		return nil, fmt.Errorf("unknown method: %s", req.Method)
	}
}

func (d *dispatcher) BeforeAgentStart(ev host.BeforeAgentStartEvent) (host.BeforeAgentStartResult, error) {
	st, err := d.reg.Get(context.Background(), ev.AgentID)
	if err != nil {
		return host.BeforeAgentStartResult{}, err
	}

	messages := st.Compactor.Compact(ev.Messages)

	userText := lastUserText(messages)
	result := st.Orchestrator.BeforeAgentStart(context.Background(), userText)
	return host.BeforeAgentStartResult{PrependContext: result.PrependContext, Messages: messages}, nil
}

func (d *dispatcher) BeforeToolCall(ev host.BeforeToolCallEvent) error {
	st, err := d.reg.Get(context.Background(), ev.AgentID)
	if err != nil {
		return err
	}
	query, _ := ev.Params["query"].(string)
	st.Orchestrator.BeforeToolCall(ev.ToolName, query)
	return nil
}

func (d *dispatcher) AfterToolCall(ev host.AfterToolCallEvent) error {
	st, err := d.reg.Get(context.Background(), ev.AgentID)
	if err != nil {
		return err
	}
	st.Orchestrator.AfterToolCall(ev.Result)
	return nil
}

func (d *dispatcher) ToolResultPersist(ev host.ToolResultPersistEvent) (host.ToolResultPersistResult, error) {
	st, err := d.reg.Get(context.Background(), ev.AgentID)
	if err != nil {
		return host.ToolResultPersistResult{}, err
	}
	modified := st.Orchestrator.ToolResultPersist(ev.ToolName, ev.Message)
	return host.ToolResultPersistResult{Message: modified}, nil
}

// AgentEnd archives the turn's messages, reindexes every day touched,
// and refreshes anchors/topics from the fresh transcript.
func (d *dispatcher) AgentEnd(ev host.AgentEndEvent) error {
	st, err := d.reg.Get(context.Background(), ev.AgentID)
	if err != nil {
		return err
	}
	if err := st.Archiver.Archive(ev.Messages); err != nil {
		return fmt.Errorf("archive turn: %w", err)
	}

	dates := map[string]bool{}
	for _, m := range ev.Messages {
		dates[m.TimestampOrNow().UTC().Format("2006-01-02")] = true
	}
	for date := range dates {
		day, err := st.Archiver.GetConversation(date)
		if err != nil {
			d.logger.Warn("agent_end reindex: could not load day", "date", date, "error", err)
			continue
		}
		if err := st.Indexer.IndexDay(date, day.Messages); err != nil {
			d.logger.Warn("agent_end reindex failed", "date", date, "error", err)
		}
	}

	st.Anchors.Detect(ev.Messages)
	for _, m := range ev.Messages {
		st.Topics.Track(m.Text(), nil)
	}
	return nil
}

func (d *dispatcher) BeforeCompaction(ev host.BeforeCompactionEvent) error {
	st, err := d.reg.Get(context.Background(), ev.AgentID)
	if err != nil {
		return err
	}
	stats, _ := st.Archiver.GetStats()
	d.logger.Info("compaction summary",
		"agentId", ev.AgentID, "archiveDays", stats.TotalDays, "archiveMessages", stats.TotalMessages,
		"maxTokens", st.Estimator.GetMaxTokens(), "fixatedTopics", len(st.Topics.Fixated()), "anchors", len(st.Anchors.Anchors()))
	return nil
}

func (d *dispatcher) SessionStart(ev host.SessionStartEvent) error {
	st, err := d.reg.Get(context.Background(), ev.AgentID)
	if err != nil {
		return err
	}
	st.SessionStart = models.SessionState{AgentID: ev.AgentID, SessionStart: time.Now().UTC(), StorageReady: true}
	return nil
}

// SessionEnd runs a final index pass over every unindexed day before
// the session's archive goes cold.
func (d *dispatcher) SessionEnd(ev host.SessionEndEvent) error {
	st, err := d.reg.Get(context.Background(), ev.AgentID)
	if err != nil {
		return err
	}
	indexed, err := st.IndexLog.IndexedDates()
	if err != nil {
		return fmt.Errorf("list indexed dates: %w", err)
	}
	unindexed, err := st.Archiver.GetUnindexedDates(indexed)
	if err != nil {
		return fmt.Errorf("list unindexed dates: %w", err)
	}
	for _, date := range unindexed {
		day, err := st.Archiver.GetConversation(date)
		if err != nil {
			d.logger.Warn("session_end index pass: could not load day", "date", date, "error", err)
			continue
		}
		if err := st.Indexer.IndexDay(date, day.Messages); err != nil {
			d.logger.Warn("session_end index pass failed", "date", date, "error", err)
		}
	}
	return nil
}

func (d *dispatcher) GetState(agentID string) (host.GetStateResponse, error) {
	st, err := d.reg.Get(context.Background(), agentID)
	if err != nil {
		return host.GetStateResponse{}, err
	}
	stats, _ := st.Archiver.GetStats()
	count, _ := st.DB.ExchangeCount()
	return host.GetStateResponse{
		ArchiveStats:  stats,
		Topics:        st.Topics.Topics(),
		Anchors:       st.Anchors.Anchors(),
		ExchangeCount: count,
		SessionAgeSec: sessionAgeSeconds(st.SessionStart),
		IndexReady:    true,
	}, nil
}

// sessionAgeSeconds reports how long ago session_start fired, or 0 if
// it never has (a fresh agent with no recorded session).
func sessionAgeSeconds(s models.SessionState) float64 {
	if s.SessionStart.IsZero() {
		return 0
	}
	return time.Since(s.SessionStart).Seconds()
}

func (d *dispatcher) GetConfig() (any, error) {
	return d.cfg, nil
}

func (d *dispatcher) Search(req host.SearchRequest) (host.SearchResponse, error) {
	st, err := d.reg.Get(context.Background(), req.AgentID)
	if err != nil {
		return host.SearchResponse{}, err
	}
	query := req.Query
	if query == "" {
		query = req.Text
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	results := st.Searcher.Search(query, limit)
	resp := host.SearchResponse{
		Exchanges: make([]models.Exchange, 0, len(results)),
		Distances: make([]float64, 0, len(results)),
	}
	for _, r := range results {
		resp.Exchanges = append(resp.Exchanges, r.Exchange)
		resp.Distances = append(resp.Distances, r.Distance)
	}
	return resp, nil
}

func (d *dispatcher) GetArchiveStats(agentID string) (any, error) {
	st, err := d.reg.Get(context.Background(), agentID)
	if err != nil {
		return nil, err
	}
	return st.Archiver.GetStats()
}

func (d *dispatcher) GetTopics(agentID string) (host.TopicsResponse, error) {
	st, err := d.reg.Get(context.Background(), agentID)
	if err != nil {
		return host.TopicsResponse{}, err
	}
	return host.TopicsResponse{Topics: st.Topics.Topics(), Fixated: st.Topics.Fixated()}, nil
}

func (d *dispatcher) ListAgents() ([]models.AgentSummary, error) {
	return d.reg.Agents(), nil
}

func lastUserText(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return messages[i].Text()
		}
	}
	return ""
}
