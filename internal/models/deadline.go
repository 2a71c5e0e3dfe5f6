package models

import "time"

type DeadlineStatus string

const (
	StatusPending         DeadlineStatus = "pending"
	StatusNotifiedPartial DeadlineStatus = "notified_partial"
	StatusNotifiedFull    DeadlineStatus = "notified_full"
	StatusPassed          DeadlineStatus = "passed"
	StatusRemoved         DeadlineStatus = "removed"
)

type Deadline struct {
	GrantID         string         `json:"grant_id"`
	DeadlineAt      time.Time      `json:"deadline_timestamp"`
	NotifyOffsets   []int          `json:"notify_offsets"`
	Status          DeadlineStatus `json:"status"`
	NotifiedOffsets []int          `json:"notified_offsets"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// DaysRemaining is the fractional number of days until the deadline.
func (d Deadline) DaysRemaining(now time.Time) float64 {
	return d.DeadlineAt.Sub(now).Hours() / 24
}

// DueNotification is a reminder that became due for one offset.
type DueNotification struct {
	GrantID    string    `json:"grant_id"`
	Offset     int       `json:"offset"`
	DeadlineAt time.Time `json:"deadline_timestamp"`
}
