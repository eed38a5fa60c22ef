package riverjobs

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRetentionDays = 30
	defaultBatchSize     = 500
	// maxBatchesPerRun caps one run so a huge backlog drains over several schedules.
	maxBatchesPerRun = 200
)

type PurgeSignInsArgs struct {
	RetentionDays int `json:"retention_days,omitempty"`
	BatchSize     int `json:"batch_size,omitempty"`
}

func (PurgeSignInsArgs) Kind() string { return "cpop_purge_signins" }

func (args PurgeSignInsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue: river.QueueDefault,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: 24 * time.Hour,
			ByQueue:  true,
		},
	}
}

// SignInPurger deletes sign-in log rows older than cutoff. *core.Service implements it.
type SignInPurger interface {
	PurgeSignInsBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// PurgeSignInsWorker deletes sign-in log rows older than RetentionDays, in batches.
type PurgeSignInsWorker struct {
	river.WorkerDefaults[PurgeSignInsArgs]
	svc SignInPurger
	now func() time.Time
}

func NewPurgeSignInsWorker(svc SignInPurger) *PurgeSignInsWorker {
	return &PurgeSignInsWorker{svc: svc, now: time.Now}
}

func (w *PurgeSignInsWorker) Timeout(*river.Job[PurgeSignInsArgs]) time.Duration {
	return 10 * time.Minute
}

func (w *PurgeSignInsWorker) Work(ctx context.Context, job *river.Job[PurgeSignInsArgs]) error {
	if w == nil || w.svc == nil {
		return errors.New("cpop purge: service not configured")
	}
	retention := job.Args.RetentionDays
	if retention <= 0 {
		retention = defaultRetentionDays
	}
	batch := job.Args.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	cutoff := w.now().UTC().AddDate(0, 0, -retention)
	var total int64
	for i := 0; i < maxBatchesPerRun; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.svc.PurgeSignInsBefore(ctx, cutoff, batch)
		if err != nil {
			return err
		}
		total += n
		if n < int64(batch) {
			break
		}
	}
	log.WithContext(ctx).WithFields(log.Fields{
		"deleted":        total,
		"retention_days": retention,
	}).Info("purged wallet sign-ins")
	return nil
}
