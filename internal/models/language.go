package models

import "time"

// Language groups courses and owns the signup calendar.
//
// The calendar is a sequence of half-open windows:
// [SignupBegin, SignupRndWindowEnd) random lottery registrations,
// [SignupRndWindowEnd, SignupManualEnd) manual assignment by administrators,
// [SignupFCFSBegin, SignupEnd) first-come-first-served registrations.
// Registrations before SignupBegin are preterm (priority) signups.
type Language struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	SignupBegin        time.Time `db:"signup_begin" json:"signup_begin"`
	SignupRndWindowEnd time.Time `db:"signup_rnd_window_end" json:"signup_rnd_window_end"`
	SignupManualEnd    time.Time `db:"signup_manual_end" json:"signup_manual_end"`
	SignupFCFSBegin    time.Time `db:"signup_fcfs_begin" json:"signup_fcfs_begin"`
	SignupEnd          time.Time `db:"signup_end" json:"signup_end"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// IsInManualMode reports whether automatic population must leave the language alone at t.
func (l *Language) IsInManualMode(t time.Time) bool {
	return !t.Before(l.SignupRndWindowEnd) && t.Before(l.SignupManualEnd)
}

// IsOpenForSignupRnd reports whether t lies in the random lottery window.
func (l *Language) IsOpenForSignupRnd(t time.Time) bool {
	return !t.Before(l.SignupBegin) && t.Before(l.SignupRndWindowEnd)
}

// IsOpenForSignupFCFS reports whether t lies in the first-come-first-served window.
func (l *Language) IsOpenForSignupFCFS(t time.Time) bool {
	return !t.Before(l.SignupFCFSBegin) && t.Before(l.SignupEnd)
}

// IsOpenForSignup reports whether public signup is possible at t.
func (l *Language) IsOpenForSignup(t time.Time) bool {
	return l.IsOpenForSignupRnd(t) || l.IsOpenForSignupFCFS(t)
}

// IsPreterm reports whether a registration happened before the public signup opened.
func (l *Language) IsPreterm(registered time.Time) bool {
	return registered.Before(l.SignupBegin)
}

// LanguageWithCourses is returned by catalogue endpoints.
type LanguageWithCourses struct {
	Language
	Courses []Course `json:"courses"`
}
