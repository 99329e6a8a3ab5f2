package model

import "time"

// DateFormat is the calendar-day format used for week_start keys.
const DateFormat = "2006-01-02"

// ScheduleSlot is one claimable day-of-week entry in an apartment's weekly
// cleaning roster. Exactly one slot exists per (apartment, week, day); slots
// are seeded lazily and never deleted.
type ScheduleSlot struct {
	ID          int64     `json:"id"`
	ApartmentID int64     `json:"apartment_id"`
	WeekStart   string    `json:"week_start"`
	DayOfWeek   int       `json:"day_of_week"`
	UserID      *int64    `json:"user_id"`
	Username    *string   `json:"username"`
	IsTaken     bool      `json:"is_taken"`
	CreatedAt   time.Time `json:"created_at"`
}
