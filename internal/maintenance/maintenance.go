// Package maintenance runs the periodic per-agent sweep: index
// un-indexed archive days, prune expired ones, and report.
package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wrenhollow/continuity/internal/archive"
	"github.com/wrenhollow/continuity/internal/config"
	"github.com/wrenhollow/continuity/internal/index"
)

var (
	runsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "continuity_maintenance_runs_total",
		Help: "Total number of completed maintenance sweeps.",
	})
	daysIndexedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "continuity_maintenance_days_indexed_total",
		Help: "Total archive days indexed by maintenance sweeps.",
	})
	daysPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "continuity_maintenance_days_pruned_total",
		Help: "Total archive days pruned by maintenance sweeps.",
	})
	errorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "continuity_maintenance_errors_total",
		Help: "Total per-step errors encountered during maintenance sweeps.",
	})
)

func init() {
	prometheus.MustRegister(runsTotal, daysIndexedTotal, daysPrunedTotal, errorsTotal)
}

// AgentSource is the subset of registry.Storage a sweep needs for one
// agent; named here to keep maintenance decoupled from the registry's
// concrete type.
type AgentSource struct {
	AgentID  string
	Archiver *archive.Archiver
	Indexer  *index.Indexer
	IndexedDates func() (map[string]bool, error)
}

// Report summarizes one sweep.
type Report struct {
	RunNumber int           `json:"runNumber"`
	Indexed   int           `json:"indexed"`
	Pruned    int           `json:"pruned"`
	Errors    []string      `json:"errors"`
	Stats     archive.Stats `json:"archiveStats"`
}

// Service runs the periodic sweep for every agent the registry has
// materialized.
type Service struct {
	cfg     config.Maintenance
	sources func() []AgentSource
	logger  *slog.Logger

	runNumber int64
	running   int32 // reentrancy guard: 0 idle, 1 in progress
}

// New builds a maintenance Service. sources is called fresh at the
// start of every sweep so newly registered agents are picked up.
func New(cfg config.Maintenance, sources func() []AgentSource, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, sources: sources, logger: logger}
}

// Run blocks, firing a sweep on cfg.Cron (a 5-field cron expression)
// until ctx is cancelled. The ticking goroutine never blocks process
// exit: ctx cancellation stops it immediately between ticks.
func (s *Service) Run(ctx context.Context) {
	expr := gronx.New()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := expr.IsDue(s.cfg.Cron)
			if err != nil || !due {
				continue
			}
			s.sweepOnce(ctx)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		s.logger.Warn("maintenance sweep already in progress, skipping this tick")
		return
	}
	defer atomic.StoreInt32(&s.running, 0)

	run := int(atomic.AddInt64(&s.runNumber, 1))
	var wg sync.WaitGroup
	for _, src := range s.sources() {
		wg.Add(1)
		go func(src AgentSource) {
			defer wg.Done()
			report := s.sweepAgent(ctx, src, run)
			s.logger.Info("maintenance sweep complete",
				"agentId", src.AgentID, "run", report.RunNumber,
				"indexed", report.Indexed, "pruned", report.Pruned, "errors", len(report.Errors))
		}(src)
	}
	wg.Wait()
	runsTotal.Inc()
}

func (s *Service) sweepAgent(ctx context.Context, src AgentSource, run int) Report {
	report := Report{RunNumber: run}

	indexed, err := src.IndexedDates()
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		errorsTotal.Inc()
		return report
	}

	unindexed, err := src.Archiver.GetUnindexedDates(indexed)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		errorsTotal.Inc()
		return report
	}

	sleepBetween := 100 * time.Millisecond
	if s.cfg.BatchSleepMS > 0 {
		sleepBetween = time.Duration(s.cfg.BatchSleepMS) * time.Millisecond
	}

	for i, date := range unindexed {
		select {
		case <-ctx.Done():
			return report
		default:
		}
		day, err := src.Archiver.GetConversation(date)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			errorsTotal.Inc()
			continue
		}
		if err := src.Indexer.IndexDay(date, day.Messages); err != nil {
			report.Errors = append(report.Errors, err.Error())
			errorsTotal.Inc()
			continue
		}
		report.Indexed++
		daysIndexedTotal.Inc()
		if i < len(unindexed)-1 {
			time.Sleep(sleepBetween)
		}
	}

	pruned, err := src.Archiver.PruneOld()
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		errorsTotal.Inc()
	}
	report.Pruned = pruned
	daysPrunedTotal.Add(float64(pruned))

	if stats, err := src.Archiver.GetStats(); err == nil {
		report.Stats = stats
	}

	return report
}
