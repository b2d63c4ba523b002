package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rookgm/storefront/internal/email"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/telemetry"
	"go.uber.org/zap"
)

const defaultNotificationType = "email"

// ReminderRepository is interface for interacting with reminders
type ReminderRepository interface {
	// CreateReminder inserts reminder, returns models.ErrConflictData for existing cycle
	CreateReminder(ctx context.Context, reminder *models.Reminder) (*models.Reminder, error)
	// GetDueReminders returns not notified reminders whose notify date is day
	GetDueReminders(ctx context.Context, day time.Time) ([]models.Reminder, error)
	// GetRemindersByUserID returns user reminders
	GetRemindersByUserID(ctx context.Context, userID string) ([]models.Reminder, error)
	// MarkNotified flags reminder as notified
	MarkNotified(ctx context.Context, id string) error
	// ReminderExists reports whether user has reminder for cycle start
	ReminderExists(ctx context.Context, userID string, cycleStart time.Time) (bool, error)
}

// Mailer sends email messages
type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

// ReminderService schedules recurring cycle reminders
type ReminderService struct {
	repo    ReminderRepository
	mailer  Mailer
	metrics *telemetry.Metrics
	logger  *zap.Logger
	loc     *time.Location
	now     func() time.Time
	newID   func() string

	// one scan at a time
	running sync.Mutex
}

// NewReminderService creates new ReminderService instance.
// loc is time zone used to decide current calendar day.
func NewReminderService(repo ReminderRepository, mailer Mailer, metrics *telemetry.Metrics, loc *time.Location, logger *zap.Logger) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{
		repo:    repo,
		mailer:  mailer,
		metrics: metrics,
		logger:  logger,
		loc:     loc,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Setup creates first reminder of user cycle
func (rs *ReminderService) Setup(ctx context.Context, userID string, reminder models.Reminder) (*models.Reminder, error) {
	reminder.Name = strings.TrimSpace(reminder.Name)
	reminder.Email = strings.TrimSpace(reminder.Email)

	switch {
	case reminder.Name == "":
		return nil, models.NewValidationError("name", "is required")
	case reminder.Email == "":
		return nil, models.NewValidationError("email", "is required")
	case reminder.CycleStart.IsZero():
		return nil, models.NewValidationError("cycle_start", "is required")
	case reminder.CycleLength < 0:
		return nil, models.NewValidationError("cycle_length", "must not be negative")
	case reminder.ReminderDays < 0:
		return nil, models.NewValidationError("reminder_days", "must not be negative")
	}
	if _, err := mail.ParseAddress(reminder.Email); err != nil {
		return nil, models.NewValidationError("email", "must be valid email")
	}

	if reminder.CycleLength == 0 {
		reminder.CycleLength = models.DefaultCycleLength
	}
	if reminder.NotificationType == "" {
		reminder.NotificationType = defaultNotificationType
	}

	reminder.ID = rs.newID()
	reminder.UserID = userID
	reminder.CycleStart = calendarDay(reminder.CycleStart)
	reminder.Notified = false
	reminder.Status = models.ReminderStatusPending

	return rs.repo.CreateReminder(ctx, &reminder)
}

// ListUserReminders returns user reminders
func (rs *ReminderService) ListUserReminders(ctx context.Context, userID string) ([]models.Reminder, error) {
	return rs.repo.GetRemindersByUserID(ctx, userID)
}

// ProcessDue sends reminders due today and schedules next cycles
func (rs *ReminderService) ProcessDue(ctx context.Context) (models.ReminderReport, error) {
	return rs.ProcessDay(ctx, rs.now().In(rs.loc))
}

// ProcessDay sends reminders whose notify date is day.
// Failure of one reminder does not abort the others.
func (rs *ReminderService) ProcessDay(ctx context.Context, day time.Time) (models.ReminderReport, error) {
	var report models.ReminderReport

	if !rs.running.TryLock() {
		return report, models.ErrReminderRunInProgress
	}
	defer rs.running.Unlock()

	day = calendarDay(day)
	log := rs.logger.With(zap.String("day", day.Format(time.DateOnly)))

	candidates, err := rs.repo.GetDueReminders(ctx, day)
	if err != nil {
		return report, fmt.Errorf("get due reminders: %w", err)
	}

	for _, reminder := range candidates {
		if reminder.Notified || !calendarDay(reminder.NotifyDate()).Equal(day) {
			continue
		}
		report.Due++

		created, err := rs.process(ctx, reminder)
		if err != nil {
			report.Failed++
			rs.observe("failed")
			log.Error("process reminder", zap.String("reminder_id", reminder.ID), zap.Error(err))
			continue
		}

		report.Notified++
		rs.observe("notified")
		if created {
			report.Created++
		}
	}

	log.Info("due reminders are processed",
		zap.Int("due", report.Due),
		zap.Int("notified", report.Notified),
		zap.Int("failed", report.Failed),
		zap.Int("created", report.Created))

	return report, nil
}

// process notifies one reminder and creates next cycle; it reports whether next cycle was created
func (rs *ReminderService) process(ctx context.Context, reminder models.Reminder) (bool, error) {
	msg, err := email.ReminderMessage(reminder)
	if err != nil {
		return false, fmt.Errorf("render reminder: %w", err)
	}

	if err := rs.mailer.Send(ctx, msg); err != nil {
		return false, fmt.Errorf("send reminder: %w", err)
	}

	if err := rs.repo.MarkNotified(ctx, reminder.ID); err != nil {
		return false, fmt.Errorf("mark reminder notified: %w", err)
	}

	next := reminder.Next()
	next.CycleStart = calendarDay(next.CycleStart)

	exists, err := rs.repo.ReminderExists(ctx, next.UserID, next.CycleStart)
	if err != nil {
		return false, fmt.Errorf("check next reminder: %w", err)
	}
	if exists {
		return false, nil
	}

	next.ID = rs.newID()
	if _, err := rs.repo.CreateReminder(ctx, &next); err != nil {
		if errors.Is(err, models.ErrConflictData) {
			return false, nil
		}
		return false, fmt.Errorf("create next reminder: %w", err)
	}

	return true, nil
}

func (rs *ReminderService) observe(result string) {
	if rs.metrics != nil {
		rs.metrics.Reminders.WithLabelValues(result).Inc()
	}
}

// calendarDay truncates t to midnight UTC of the same calendar date
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
