package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mcclellann/loantracker/pkg/ledger"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// OverdueConfig schedules the overdue status sweep.
type OverdueConfig struct {
	Schedule string
	TimeZone string
	Timeout  time.Duration
}

// Sweeper is the part of the ledger the overdue job drives.
type Sweeper interface {
	RefreshOverdueStatuses(ctx context.Context) (ledger.OverdueReport, error)
}

// OverdueJob runs the overdue sweep on a cron schedule. Runs never overlap.
type OverdueJob struct {
	sweeper Sweeper
	log     logrus.FieldLogger
	cfg     OverdueConfig
	cron    *cron.Cron
	mu      sync.Mutex
}

func NewOverdueJob(s Sweeper, log logrus.FieldLogger, cfg OverdueConfig) *OverdueJob {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &OverdueJob{sweeper: s, log: log.WithField("job", "overdue_sweep"), cfg: cfg}
}

// Start schedules the sweep and starts the cron runner.
func (j *OverdueJob) Start() error {
	loc, err := time.LoadLocation(j.cfg.TimeZone)
	if err != nil {
		j.log.WithError(err).Warnf("unknown time zone %q, using UTC", j.cfg.TimeZone)
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(j.cfg.Schedule, func() {
		if _, err := j.Run(context.Background()); err != nil {
			j.log.WithError(err).Error("overdue sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("unable to schedule overdue sweep: %w", err)
	}

	c.Start()
	j.cron = c
	j.log.WithField("schedule", j.cfg.Schedule).Info("overdue scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (j *OverdueJob) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	j.log.Info("overdue scheduler stopped")
}

// Run performs one sweep. A run that starts while another is in progress is skipped.
func (j *OverdueJob) Run(ctx context.Context) (ledger.OverdueReport, error) {
	if !j.mu.TryLock() {
		j.log.Warn("overdue sweep already running, skipping")
		return ledger.OverdueReport{}, nil
	}
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	start := time.Now()
	report, err := j.sweeper.RefreshOverdueStatuses(ctx)
	if err != nil {
		return report, err
	}
	j.log.WithFields(logrus.Fields{
		"checked":        report.Checked,
		"marked_overdue": report.MarkedOverdue,
		"restored":       report.Restored,
		"failed":         report.Failed,
		"duration":       time.Since(start).String(),
	}).Info("overdue sweep finished")
	return report, nil
}
