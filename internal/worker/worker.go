package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rookgm/storefront/internal/models"
	"go.uber.org/zap"
)

// DefaultSchedule runs reminder scan every day at 08:00
const DefaultSchedule = "0 8 * * *"

type ReminderService interface {
	ProcessDue(ctx context.Context) (models.ReminderReport, error)
}

// ReminderProcessor is worker triggering daily reminder scan
type ReminderProcessor struct {
	svc      ReminderService
	cron     *cron.Cron
	schedule string
	logger   *zap.Logger
}

// NewReminderProcessor creates new reminder processor.
// schedule is standard five field cron expression evaluated in loc.
func NewReminderProcessor(svc ReminderService, schedule string, loc *time.Location, logger *zap.Logger) (*ReminderProcessor, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse reminder schedule %q: %w", schedule, err)
	}

	return &ReminderProcessor{
		svc:      svc,
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: schedule,
		logger:   logger,
	}, nil
}

// ProcessReminders runs scheduled scans until ctx is done
func (rp *ReminderProcessor) ProcessReminders(ctx context.Context) error {
	_, err := rp.cron.AddFunc(rp.schedule, func() { rp.RunOnce(ctx) })
	if err != nil {
		return err
	}

	rp.cron.Start()
	rp.logger.Info("reminder processor is started", zap.String("schedule", rp.schedule))

	<-ctx.Done()

	// wait for running scan
	<-rp.cron.Stop().Done()
	rp.logger.Debug("reminder processor is done")

	return nil
}

// RunOnce performs single scan
func (rp *ReminderProcessor) RunOnce(ctx context.Context) {
	report, err := rp.svc.ProcessDue(ctx)
	if err != nil {
		if errors.Is(err, models.ErrReminderRunInProgress) {
			rp.logger.Info("reminder scan is skipped, previous one is running")
			return
		}
		rp.logger.Error("process due reminders", zap.Error(err))
		return
	}

	rp.logger.Debug("reminder scan is done",
		zap.Int("due", report.Due),
		zap.Int("failed", report.Failed))
}
