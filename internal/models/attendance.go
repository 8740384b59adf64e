package models

import "time"

// MaxDiscount is a fully discounted (free) seat.
const MaxDiscount = 1.0

// Attendance links an applicant to a course. Its identity is the (applicant, course) pair.
type Attendance struct {
	ApplicantID            string     `db:"applicant_id" json:"applicant_id"`
	CourseID               string     `db:"course_id" json:"course_id"`
	Waiting                bool       `db:"waiting" json:"waiting"`
	Registered             time.Time  `db:"registered" json:"registered"`
	Discount               float64    `db:"discount" json:"discount"`
	InformedAboutRejection bool       `db:"informed_about_rejection" json:"informed_about_rejection"`
	AmountPaid             float64    `db:"amount_paid" json:"amount_paid"`
	PaidByCash             bool       `db:"paid_by_cash" json:"paid_by_cash"`
	PayingDate             *time.Time `db:"paying_date" json:"paying_date,omitempty"`

	Applicant *Applicant `db:"-" json:"-"`
	Course    *Course    `db:"-" json:"-"`
}

// SetWaitingStatus moves the attendance between waiting list and seat and keeps the
// loaded course occupancy in sync. It reports whether anything changed.
func (a *Attendance) SetWaitingStatus(waiting bool) bool {
	if a.Waiting == waiting {
		return false
	}
	a.Waiting = waiting
	if a.Course != nil {
		if waiting {
			a.Course.ActiveCount--
			a.Course.WaitingCount++
		} else {
			a.Course.ActiveCount++
			a.Course.WaitingCount--
		}
	}
	return true
}

// AttendanceDetail joins applicant and course names for listings.
type AttendanceDetail struct {
	Attendance
	FirstName  string `db:"first_name" json:"first_name"`
	LastName   string `db:"last_name" json:"last_name"`
	Mail       string `db:"mail" json:"mail"`
	Tag        string `db:"tag" json:"tag,omitempty"`
	CourseName string `db:"course_name" json:"course_name"`
}

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	CourseID    string
	ApplicantID string
	Waiting     *bool
}

// PaymentStatistics aggregates the payments of charged, active attendances per payment method.
type PaymentStatistics struct {
	PaidByCash bool    `db:"paid_by_cash" json:"paid_by_cash"`
	Count      int     `db:"count" json:"count"`
	Sum        float64 `db:"total" json:"sum"`
	Average    float64 `db:"average" json:"average"`
	Min        float64 `db:"minimum" json:"min"`
	Max        float64 `db:"maximum" json:"max"`
}

// OutstandingAttendance is an active attendance that has not been paid in full.
type OutstandingAttendance struct {
	AttendanceDetail
	Price     int     `db:"price" json:"price"`
	AmountDue float64 `db:"amount_due" json:"amount_due"`
}
