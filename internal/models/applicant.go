package models

import (
	"strings"
	"time"
)

// Applicant is a person holding zero or more attendances.
type Applicant struct {
	ID        string    `db:"id" json:"id"`
	Mail      string    `db:"mail" json:"mail"`
	Tag       string    `db:"tag" json:"tag,omitempty"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Origin    string    `db:"origin" json:"origin,omitempty"`
	IsStudent bool      `db:"is_student" json:"is_student"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Attendances []*Attendance `db:"-" json:"attendances,omitempty"`
}

// FullName renders "<first> <last>".
func (a *Applicant) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// ActiveAttendances returns the attendances holding a seat.
func (a *Applicant) ActiveAttendances() []*Attendance {
	var active []*Attendance
	for _, att := range a.Attendances {
		if !att.Waiting {
			active = append(active, att)
		}
	}
	return active
}

// ActiveCourseCount counts attendances holding a seat.
func (a *Applicant) ActiveCourseCount() int {
	n := 0
	for _, att := range a.Attendances {
		if !att.Waiting {
			n++
		}
	}
	return n
}

// CurrentDiscount is the discount a new seat would get right now: students get one course
// free of charge, so MaxDiscount as long as no active attendance already carries it.
func (a *Applicant) CurrentDiscount() float64 {
	if !a.IsStudent {
		return 0
	}
	for _, att := range a.Attendances {
		if !att.Waiting && att.Discount >= MaxDiscount {
			return 0
		}
	}
	return MaxDiscount
}

// InCourse reports whether the applicant holds any attendance for course.
func (a *Applicant) InCourse(course *Course) bool {
	return a.Attendance(course.ID) != nil
}

// Attendance returns the attendance for courseID, if any.
func (a *Applicant) Attendance(courseID string) *Attendance {
	for _, att := range a.Attendances {
		if att.CourseID == courseID {
			return att
		}
	}
	return nil
}

// ActiveInParallelCourse reports whether the applicant holds a seat in a parallel course.
func (a *Applicant) ActiveInParallelCourse(course *Course) bool {
	for _, att := range a.Attendances {
		if att.Waiting || att.Course == nil {
			continue
		}
		if course.IsParallel(att.Course) {
			return true
		}
	}
	return false
}

// OverLimit reports whether the applicant reached the number of allowed registrations.
func (a *Applicant) OverLimit(limit int) bool {
	return limit > 0 && len(a.Attendances) >= limit
}

// DuplicateGroup collects applicants registered under the same tag.
type DuplicateGroup struct {
	Tag        string      `json:"tag"`
	Applicants []Applicant `json:"applicants"`
}
