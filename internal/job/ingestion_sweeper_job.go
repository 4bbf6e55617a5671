package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/harshkolte01/tutor-bot/internal/model"
	"github.com/harshkolte01/tutor-bot/internal/pkg/timeutil"
)

const sweepBatchSize = 200

type staleIngestionStore interface {
	ListStale(ctx context.Context, cutoff int64, limit uint) ([]model.DocumentIngestion, error)
	MarkFailed(ctx context.Context, ingestionID, errorMessage string, completedAt int64) error
}

// IngestionSweeperJob fails ingestions stuck in processing. Ingestion runs
// in the request lifecycle, so a row still processing long after creation
// belongs to a crashed or killed process.
type IngestionSweeperJob struct {
	ingestions       staleIngestionStore
	sweepAfterMinute int
}

func NewIngestionSweeperJob(ingestions staleIngestionStore, sweepAfterMinute int) *IngestionSweeperJob {
	return &IngestionSweeperJob{ingestions: ingestions, sweepAfterMinute: sweepAfterMinute}
}

func (j *IngestionSweeperJob) Name() string {
	return "ingestion_sweeper"
}

func (j *IngestionSweeperJob) Run(ctx context.Context) error {
	if j.ingestions == nil {
		return nil
	}
	cutoff := timeutil.NowUnix() - int64(j.sweepAfterMinute)*60
	stale, err := j.ingestions.ListStale(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	for _, ing := range stale {
		if err := j.ingestions.MarkFailed(ctx, ing.ID, "ingestion interrupted", timeutil.NowUnix()); err != nil {
			logger.Warn("sweep stale ingestion",
				zap.String("ingestion_id", ing.ID), zap.Error(err))
			continue
		}
		logger.Info("stale ingestion failed",
			zap.String("ingestion_id", ing.ID),
			zap.String("document_id", ing.DocumentID),
			zap.Int64("created_at", ing.CreatedAt))
	}
	return nil
}
