package models

import "time"

// DefaultCycleLength is used when reminder has no cycle length
const DefaultCycleLength = 28

// reminder status
const (
	ReminderStatusPending  = "pending"
	ReminderStatusNotified = "notified"
)

// Reminder is one cycle of recurring reminder
type Reminder struct {
	ID               string
	UserID           string
	Name             string
	Email            string
	CycleStart       time.Time
	CycleLength      int
	ReminderDays     int
	NotificationType string
	Notified         bool
	Status           string
	CreatedAt        time.Time
}

// NotifyDate returns date when reminder must be sent
func (r Reminder) NotifyDate() time.Time {
	return r.CycleStart.AddDate(0, 0, -r.ReminderDays)
}

// NextCycleStart returns start date of next cycle
func (r Reminder) NextCycleStart() time.Time {
	length := r.CycleLength
	if length <= 0 {
		length = DefaultCycleLength
	}
	return r.CycleStart.AddDate(0, 0, length)
}

// Next returns pending reminder for next cycle carrying the same preferences
func (r Reminder) Next() Reminder {
	length := r.CycleLength
	if length <= 0 {
		length = DefaultCycleLength
	}
	return Reminder{
		UserID:           r.UserID,
		Name:             r.Name,
		Email:            r.Email,
		CycleStart:       r.NextCycleStart(),
		CycleLength:      length,
		ReminderDays:     r.ReminderDays,
		NotificationType: r.NotificationType,
		Status:           ReminderStatusPending,
	}
}

// ReminderReport is result of one scan
type ReminderReport struct {
	Due      int
	Notified int
	Failed   int
	Created  int
}
