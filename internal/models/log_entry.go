package models

import "time"

// LogEntry is an operator-visible course event.
type LogEntry struct {
	ID        string    `db:"id" json:"id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Message   string    `db:"message" json:"message"`
	CourseID  *string   `db:"course_id" json:"course_id,omitempty"`
}
