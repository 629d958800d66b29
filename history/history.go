package history

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const iterateBatchSize = 50

// History is the run catalog. Recording is best-effort for callers: a
// backup run is never failed because its record could not be written.
type History struct {
	Lock   sync.Mutex
	Cli    *gorm.DB
	Logger zerolog.Logger
}

// RecordRun persists one backup run.
func (h *History) RecordRun(ctx context.Context, run *Run) error {
	h.Lock.Lock()
	defer h.Lock.Unlock()

	h.Logger.Debug().Object("run", *run).Msg("recording backup run")

	if err := h.Cli.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("could not record backup run: %w", err)
	}
	return nil
}

// IterRuns yields recorded runs, most recent first. limit <= 0 yields all.
func (h *History) IterRuns(ctx context.Context, limit int) (iter.Seq[*Run], error) {
	return func(yield func(*Run) bool) {
		var yielded int
		offset := 0
		for {
			batchSize := iterateBatchSize
			if limit > 0 && limit-yielded < batchSize {
				batchSize = limit - yielded
			}
			if batchSize <= 0 {
				return
			}

			batch := []*Run{}
			h.Lock.Lock()
			err := h.Cli.WithContext(ctx).
				Order("started_at DESC, id DESC").
				Limit(batchSize).
				Offset(offset).
				Find(&batch).Error
			h.Lock.Unlock()
			if err != nil {
				h.Logger.Error().Err(err).Msg("could not read backup run records")
				return
			}
			if len(batch) == 0 {
				return
			}

			for _, run := range batch {
				if ctx.Err() != nil {
					return
				}
				if !yield(run) {
					return
				}
				yielded++
			}
			if len(batch) < batchSize {
				return
			}
			offset += len(batch)
		}
	}, nil
}

// PruneRuns deletes run records beyond the keep most recent. keep <= 0
// keeps everything.
func (h *History) PruneRuns(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}

	h.Lock.Lock()
	defer h.Lock.Unlock()

	sub := h.Cli.Model(&Run{}).
		Select("id").
		Order("started_at DESC").
		Limit(keep)
	err := h.Cli.WithContext(ctx).
		Where("id NOT IN (?)", sub).
		Delete(&Run{}).Error
	if err != nil {
		return fmt.Errorf("could not prune backup run records: %w", err)
	}
	return nil
}
