package repository

import (
	"context"
	"time"

	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/repository/postgres"
)

const (
	insertReminderQuery = `
						INSERT INTO reminders (id, user_id, name, email, cycle_start, cycle_length, reminder_days, notification_type, notified, status)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
						RETURNING created_at
`
	selectDueRemindersQuery = `
						SELECT id, user_id, name, email, cycle_start, cycle_length, reminder_days, notification_type, notified, status, created_at
						FROM reminders
						WHERE NOT notified AND cycle_start - reminder_days = $1::date
						ORDER BY created_at
`
	selectRemindersByUserIDQuery = `
						SELECT id, user_id, name, email, cycle_start, cycle_length, reminder_days, notification_type, notified, status, created_at
						FROM reminders
						WHERE user_id = $1
						ORDER BY cycle_start DESC
`
	markReminderNotifiedQuery = `
						UPDATE reminders
						SET notified = TRUE, status = 'notified'
						WHERE id = $1 AND NOT notified
`
	existsReminderQuery = `
						SELECT EXISTS (SELECT 1 FROM reminders WHERE user_id = $1 AND cycle_start = $2::date)
`
)

// ReminderRepository implements ReminderRepository interface
type ReminderRepository struct {
	db *postgres.DB
}

// NewReminderRepository creates new reminder repository instance
func NewReminderRepository(db *postgres.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// CreateReminder creates new reminder
func (rr *ReminderRepository) CreateReminder(ctx context.Context, reminder *models.Reminder) (*models.Reminder, error) {
	err := rr.db.QueryRow(ctx, insertReminderQuery,
		reminder.ID, reminder.UserID, reminder.Name, reminder.Email, reminder.CycleStart, reminder.CycleLength,
		reminder.ReminderDays, reminder.NotificationType, reminder.Notified, reminder.Status,
	).Scan(&reminder.CreatedAt)
	if err != nil {
		if errCode := rr.db.ErrorCode(err); errCode == postgres.ErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return reminder, nil
}

// GetDueReminders returns not notified reminders whose notify date is day
func (rr *ReminderRepository) GetDueReminders(ctx context.Context, day time.Time) ([]models.Reminder, error) {
	return rr.list(ctx, selectDueRemindersQuery, day)
}

// GetRemindersByUserID returns user reminder history
func (rr *ReminderRepository) GetRemindersByUserID(ctx context.Context, userID string) ([]models.Reminder, error) {
	return rr.list(ctx, selectRemindersByUserIDQuery, userID)
}

// MarkNotified flags reminder as notified
func (rr *ReminderRepository) MarkNotified(ctx context.Context, id string) error {
	cmd, err := rr.db.Exec(ctx, markReminderNotifiedQuery, id)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}

// ReminderExists reports whether user has reminder for cycle start
func (rr *ReminderRepository) ReminderExists(ctx context.Context, userID string, cycleStart time.Time) (bool, error) {
	var exists bool
	if err := rr.db.QueryRow(ctx, existsReminderQuery, userID, cycleStart).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (rr *ReminderRepository) list(ctx context.Context, query string, arg any) ([]models.Reminder, error) {
	rows, err := rr.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []models.Reminder

	for rows.Next() {
		r := models.Reminder{}
		err = rows.Scan(&r.ID, &r.UserID, &r.Name, &r.Email, &r.CycleStart, &r.CycleLength, &r.ReminderDays,
			&r.NotificationType, &r.Notified, &r.Status, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reminders, nil
}
