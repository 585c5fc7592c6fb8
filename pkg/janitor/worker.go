// Package janitor runs periodic upkeep of the results ledger.
//
// Each cycle takes a stats snapshot, prunes games older than the retention
// window and publishes a summary through the event callback. The last
// report is also kept in the ledger's key-value table.
package janitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cereales/pendu/pkg/scoreboard"
)

// EventFunc is a callback for publishing janitor events.
// Parameters: event type, message.
type EventFunc func(typ, message string)

// Ledger is the part of the scoreboard the janitor maintains.
type Ledger interface {
	Stats(ctx context.Context) (scoreboard.Stats, error)
	Leaderboard(ctx context.Context, limit int) ([]scoreboard.PlayerScore, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	KVSet(ctx context.Context, key, value string) error
}

// ReportKey is the key-value entry holding the last report.
const ReportKey = "janitor:last-report"

// Report holds the results of a single cycle.
type Report struct {
	CycleNumber int                      `json:"cycle_number"`
	StartedAt   time.Time                `json:"started_at"`
	Duration    string                   `json:"duration"`
	Stats       scoreboard.Stats         `json:"stats"`
	TopPlayers  []scoreboard.PlayerScore `json:"top_players,omitempty"`
	Pruned      int64                    `json:"pruned"`
	Errors      []string                 `json:"errors,omitempty"`
}

// Config holds janitor configuration.
type Config struct {
	Interval   time.Duration // how often to run (default 6h)
	Retention  time.Duration // games older than this are pruned; 0 keeps everything
	StartDelay time.Duration // pause before the first cycle (default 30s)
}

// DefaultConfig returns the standard schedule.
func DefaultConfig() Config {
	return Config{
		Interval:   6 * time.Hour,
		Retention:  90 * 24 * time.Hour,
		StartDelay: 30 * time.Second,
	}
}

// Worker is the janitor background worker.
type Worker struct {
	ledger  Ledger
	onEvent EventFunc
	cfg     Config

	mu         sync.RWMutex
	lastReport *Report
	cycleCount int
}

// NewWorker creates a new janitor.
func NewWorker(l Ledger, onEvent EventFunc, cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.StartDelay < 0 {
		cfg.StartDelay = 0
	}
	return &Worker{ledger: l, onEvent: onEvent, cfg: cfg}
}

// Run starts the janitor loop. Blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("janitor started",
		"interval", w.cfg.Interval,
		"retention", w.cfg.Retention,
	)
	w.emit("status", "Janitor started")

	select {
	case <-ctx.Done():
		return
	case <-time.After(w.cfg.StartDelay):
	}

	w.logReport(ctx, w.CleanOnce(ctx))

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("janitor stopping")
			w.emit("status", "Janitor stopped")
			return
		case <-ticker.C:
			w.logReport(ctx, w.CleanOnce(ctx))
		}
	}
}

// CleanOnce runs a single cycle. Failures of individual steps are collected
// in the report.
func (w *Worker) CleanOnce(ctx context.Context) *Report {
	w.mu.Lock()
	w.cycleCount++
	cycle := w.cycleCount
	w.mu.Unlock()

	start := time.Now()
	report := &Report{CycleNumber: cycle, StartedAt: start}

	if w.cfg.Retention > 0 {
		n, err := w.ledger.Prune(ctx, start.Add(-w.cfg.Retention))
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("prune: %v", err))
			slog.Warn("janitor: prune failed", "error", err)
		} else {
			report.Pruned = n
		}
	}

	stats, err := w.ledger.Stats(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("stats: %v", err))
	}
	report.Stats = stats

	top, err := w.ledger.Leaderboard(ctx, 3)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("leaderboard: %v", err))
	}
	report.TopPlayers = top

	report.Duration = time.Since(start).Round(time.Millisecond).String()

	w.mu.Lock()
	w.lastReport = report
	w.mu.Unlock()

	return report
}

// LastReport returns the most recent report, or nil before the first cycle.
func (w *Worker) LastReport() *Report {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastReport
}

func (w *Worker) logReport(ctx context.Context, report *Report) {
	summary := fmt.Sprintf(
		"Janitor cycle %d complete (%s): %d games (%d won), %d players, %d pruned",
		report.CycleNumber,
		report.Duration,
		report.Stats.Games,
		report.Stats.Won,
		report.Stats.Players,
		report.Pruned,
	)
	if len(report.Errors) > 0 {
		summary += fmt.Sprintf(", %d errors", len(report.Errors))
	}

	slog.Info("janitor: cycle complete", "summary", summary)
	w.emit("status", summary)

	if data, err := json.Marshal(report); err == nil {
		if err := w.ledger.KVSet(ctx, ReportKey, string(data)); err != nil {
			slog.Warn("janitor: store report failed", "error", err)
		}
	}
}

func (w *Worker) emit(typ, message string) {
	if w.onEvent != nil {
		w.onEvent(typ, message)
	}
}
