package models

import (
	"strings"
	"time"
)

// Course is one offering of a language at a level. Alternatives of the same level are parallel courses.
type Course struct {
	ID             string    `db:"id" json:"id"`
	LanguageID     string    `db:"language_id" json:"language_id"`
	Level          string    `db:"level" json:"level"`
	Alternative    string    `db:"alternative" json:"alternative"`
	Limit          int       `db:"seat_limit" json:"limit"`
	Price          int       `db:"price" json:"price"`
	HasWaitingList bool      `db:"has_waiting_list" json:"has_waiting_list"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	// Occupancy is loaded alongside the course and kept current by SetWaitingStatus.
	ActiveCount  int `db:"active_count" json:"active_count"`
	WaitingCount int `db:"waiting_count" json:"waiting_count"`

	LanguageName string    `db:"language_name" json:"language_name,omitempty"`
	Language     *Language `db:"-" json:"-"`
}

// FullName renders "<language> <level> <alternative>".
func (c *Course) FullName() string {
	name := c.LanguageName
	if c.Language != nil {
		name = c.Language.Name
	}
	return strings.TrimSpace(strings.Join([]string{name, c.Level, c.Alternative}, " "))
}

// IsFull reports whether every seat is taken by an active attendance.
func (c *Course) IsFull() bool {
	return c.ActiveCount >= c.Limit
}

// IsOverbooked is the soft signup limit: all attendances, waiting or not, against limit*factor.
func (c *Course) IsOverbooked(factor float64) bool {
	return float64(c.ActiveCount+c.WaitingCount) >= float64(c.Limit)*factor
}

// FreeSeats returns the number of seats not held by active attendances.
func (c *Course) FreeSeats() int {
	if free := c.Limit - c.ActiveCount; free > 0 {
		return free
	}
	return 0
}

// IsParallel reports whether other is an alternative of the same language and level.
func (c *Course) IsParallel(other *Course) bool {
	if other == nil || other.ID == c.ID {
		return false
	}
	return other.LanguageID == c.LanguageID && other.Level == c.Level
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	LanguageID  string
	OnlyVacant  bool
	OnlyWaiting bool
}

// CourseStatistics summarises seat usage.
type CourseStatistics struct {
	CourseID string `db:"course_id" json:"course_id"`
	Name     string `db:"name" json:"name"`
	Limit    int    `db:"seat_limit" json:"limit"`
	Active   int    `db:"active" json:"active"`
	Waiting  int    `db:"waiting" json:"waiting"`
	Free     int    `db:"-" json:"free"`
}

// Vacancy is the public view of a course with free seats.
type Vacancy struct {
	CourseID  string `json:"course_id"`
	Name      string `json:"name"`
	FreeSeats int    `json:"free_seats"`
}
