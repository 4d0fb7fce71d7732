// Package archive implements the durable per-day conversation log:
// dedup on write, atomic rewrite, and retention pruning.
package archive

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wrenhollow/continuity/internal/models"
)

// Stats summarizes the archive for the getArchiveStats administrative
// method.
type Stats struct {
	TotalDays     int `json:"totalDays"`
	TotalMessages int `json:"totalMessages"`
}

// Archiver owns one agent's archive directory.
type Archiver struct {
	dir           string
	retentionDays int
	logger        *slog.Logger
	mirror        Backend // optional off-site mirror, best-effort
}

// New builds an Archiver rooted at dir, creating it if missing.
func New(dir string, retentionDays int, logger *slog.Logger) (*Archiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archiver{dir: dir, retentionDays: retentionDays, logger: logger}, nil
}

// SetMirror installs an optional off-site Backend (e.g. S3). Mirror
// writes never block or fail the local archive write.
func (a *Archiver) SetMirror(b Backend) {
	a.mirror = b
}

func (a *Archiver) pathForDate(date string) string {
	return filepath.Join(a.dir, date+".json")
}

// Archive filters messages to user/assistant roles, normalizes
// timestamps, groups by date, and rewrites each affected day file with
// new entries merged in by dedup key.
func (a *Archiver) Archive(messages []models.Message) error {
	byDate := make(map[string][]models.ArchiveEntry)

	for _, m := range messages {
		var sender string
		switch m.Role {
		case models.RoleUser:
			sender = "user"
		case models.RoleAssistant:
			sender = "agent"
		default:
			continue
		}
		ts := m.TimestampOrNow()
		date := ts.UTC().Format("2006-01-02")
		byDate[date] = append(byDate[date], models.ArchiveEntry{
			Timestamp: ts,
			Sender:    sender,
			Text:      m.Text(),
		})
	}

	for date, entries := range byDate {
		if err := a.mergeDay(date, entries); err != nil {
			return fmt.Errorf("archive day %s: %w", date, err)
		}
	}
	return nil
}

func (a *Archiver) mergeDay(date string, newEntries []models.ArchiveEntry) error {
	day, err := a.load(date)
	if err != nil {
		a.logger.Warn("tolerating unreadable day file, starting fresh", "date", date, "error", err)
		day = &models.ArchiveDay{Date: date}
	}

	existing := make(map[string]bool, len(day.Messages))
	for _, e := range day.Messages {
		existing[e.DedupKey()] = true
	}

	changed := false
	for _, e := range newEntries {
		key := e.DedupKey()
		if existing[key] {
			continue
		}
		existing[key] = true
		day.Messages = append(day.Messages, e)
		changed = true
	}
	if !changed {
		return nil
	}

	sort.SliceStable(day.Messages, func(i, j int) bool {
		return day.Messages[i].Timestamp.Before(day.Messages[j].Timestamp)
	})
	day.MessageCount = len(day.Messages)
	day.Date = date

	if err := a.writeAtomic(date, day); err != nil {
		return err
	}
	if a.mirror != nil {
		go func() {
			if err := a.mirror.Put(date, day); err != nil {
				a.logger.Warn("archive mirror write failed", "date", date, "error", err)
			}
		}()
	}
	return nil
}

func (a *Archiver) writeAtomic(date string, day *models.ArchiveDay) error {
	data, err := json.MarshalIndent(day, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal day file: %w", err)
	}
	target := a.pathForDate(date)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp day file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename day file: %w", err)
	}
	return nil
}

func (a *Archiver) load(date string) (*models.ArchiveDay, error) {
	data, err := os.ReadFile(a.pathForDate(date))
	if err != nil {
		if os.IsNotExist(err) {
			return &models.ArchiveDay{Date: date}, nil
		}
		return nil, err
	}
	var day models.ArchiveDay
	if err := json.Unmarshal(data, &day); err != nil {
		return nil, fmt.Errorf("parse day file: %w", err)
	}
	return &day, nil
}

// GetConversation returns the day file for date, or an empty day if
// absent. An unreadable or unparsable file returns an error.
func (a *Archiver) GetConversation(date string) (*models.ArchiveDay, error) {
	return a.load(date)
}

// GetDates returns every archived date, sorted ascending.
func (a *Archiver) GetDates() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("list archive dir: %w", err)
	}
	var dates []string
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		dates = append(dates, name[:len(name)-len(".json")])
	}
	sort.Strings(dates)
	return dates, nil
}

// GetStats reports total day count and total message count.
func (a *Archiver) GetStats() (Stats, error) {
	dates, err := a.GetDates()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{TotalDays: len(dates)}
	for _, d := range dates {
		day, err := a.load(d)
		if err != nil {
			continue
		}
		stats.TotalMessages += len(day.Messages)
	}
	return stats, nil
}

// GetUnindexedDates returns archived dates absent from the indexed set.
func (a *Archiver) GetUnindexedDates(indexed map[string]bool) ([]string, error) {
	dates, err := a.GetDates()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, d := range dates {
		if !indexed[d] {
			out = append(out, d)
		}
	}
	return out, nil
}

// PruneOld deletes day files older than retentionDays.
func (a *Archiver) PruneOld() (int, error) {
	dates, err := a.GetDates()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -a.retentionDays).Format("2006-01-02")
	pruned := 0
	for _, d := range dates {
		if d >= cutoff {
			continue
		}
		if err := os.Remove(a.pathForDate(d)); err != nil {
			a.logger.Warn("failed to prune archive day", "date", d, "error", err)
			continue
		}
		pruned++
	}
	return pruned, nil
}
