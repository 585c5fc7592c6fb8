package scoreboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SyncWorker copies newly finished games from the local ledger to the
// Postgres mirror.
type SyncWorker struct {
	board     *Board
	mirror    *Mirror
	interval  time.Duration
	batchSize int
}

// NewSyncWorker creates a new background sync worker.
func NewSyncWorker(b *Board, m *Mirror, interval time.Duration, batchSize int) *SyncWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SyncWorker{
		board:     b,
		mirror:    m,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run starts the sync loop. Blocks until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context) {
	slog.Info("scoreboard sync worker started",
		"interval", w.interval,
		"batch_size", w.batchSize,
	)

	// backfill whatever was recorded while the mirror was away
	if n, err := w.SyncOnce(ctx); err != nil {
		slog.Warn("initial scoreboard sync failed", "error", err)
	} else if n > 0 {
		slog.Info("initial scoreboard sync complete", "mirrored", n)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scoreboard sync worker stopping")
			return
		case <-ticker.C:
			if n, err := w.SyncOnce(ctx); err != nil {
				slog.Warn("scoreboard sync cycle failed", "error", err)
			} else if n > 0 {
				slog.Info("scoreboard sync cycle", "mirrored", n)
			}
		}
	}
}

// SyncOnce mirrors every game recorded after the mirror's last sequence
// number, in batches. It returns the number of games sent.
func (w *SyncWorker) SyncOnce(ctx context.Context) (int, error) {
	last, err := w.mirror.LastSeq(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for {
		games, err := w.board.GamesAfter(ctx, last, w.batchSize)
		if err != nil {
			return total, fmt.Errorf("read local games: %w", err)
		}
		if len(games) == 0 {
			return total, nil
		}

		if err := w.mirror.InsertBatch(ctx, games); err != nil {
			return total, fmt.Errorf("mirror batch after %d: %w", last, err)
		}
		total += len(games)
		last = games[len(games)-1].Seq
		slog.Debug("batch mirrored", "count", len(games), "last_seq", last)
	}
}
