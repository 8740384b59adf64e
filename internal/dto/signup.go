package dto

import "strings"

// SignupRequest registers an applicant for a course.
type SignupRequest struct {
	CourseID     string `json:"course_id" validate:"required"`
	FirstName    string `json:"first_name" validate:"required,max=60"`
	LastName     string `json:"last_name" validate:"required,max=60"`
	Mail         string `json:"mail" validate:"required,email,max=120"`
	Tag          string `json:"tag" validate:"max=30"`
	Origin       string `json:"origin" validate:"max=60"`
	IsStudent    bool   `json:"is_student"`
	PretermToken string `json:"preterm_token"`
}

// Normalize trims the free-text fields before validation.
func (r *SignupRequest) Normalize() {
	r.CourseID = strings.TrimSpace(r.CourseID)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Mail = strings.TrimSpace(r.Mail)
	r.Tag = strings.TrimSpace(r.Tag)
	r.Origin = strings.TrimSpace(r.Origin)
	r.PretermToken = strings.TrimSpace(r.PretermToken)
}

// SignupResponse reports the created attendance.
type SignupResponse struct {
	ApplicantID string  `json:"applicant_id"`
	CourseID    string  `json:"course_id"`
	Course      string  `json:"course"`
	Waiting     bool    `json:"waiting"`
	Discount    float64 `json:"discount"`
	Preterm     bool    `json:"preterm"`
}

// SignoffRequest removes the caller's own attendance.
type SignoffRequest struct {
	Mail      string `json:"mail" validate:"required,email"`
	CourseID  string `json:"course_id" validate:"required"`
	SignoffID string `json:"signoff_id" validate:"required,len=10,hexadecimal"`
}

// Normalize trims the address and lowercases the signoff id.
func (r *SignoffRequest) Normalize() {
	r.Mail = strings.TrimSpace(r.Mail)
	r.CourseID = strings.TrimSpace(r.CourseID)
	r.SignoffID = strings.ToLower(strings.TrimSpace(r.SignoffID))
}

// PretermTokenRequest asks for a priority signup token to be mailed.
type PretermTokenRequest struct {
	Mail string `json:"mail" validate:"required,email"`
}

// Normalize trims and lowercases the address; the token subject is compared case-insensitively.
func (r *PretermTokenRequest) Normalize() {
	r.Mail = strings.ToLower(strings.TrimSpace(r.Mail))
}

// PretermTokenResponse carries an issued token.
type PretermTokenResponse struct {
	Mail      string `json:"mail"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	Mailed    bool   `json:"mailed"`
}

// AddAttendanceRequest books an applicant into a course bypassing the waiting list.
type AddAttendanceRequest struct {
	ApplicantID string `json:"applicant_id" validate:"required"`
	CourseID    string `json:"course_id" validate:"required"`
	Notify      bool   `json:"notify"`
}

// UpdateAttendanceStatusRequest edits waiting state and payment data.
type UpdateAttendanceStatusRequest struct {
	Waiting    *bool    `json:"waiting"`
	Discount   *float64 `json:"discount" validate:"omitempty,gte=0,lte=1"`
	AmountPaid *float64 `json:"amount_paid" validate:"omitempty,gte=0"`
	PaidByCash *bool    `json:"paid_by_cash"`
	Notify     bool     `json:"notify"`
}

// LanguageRequest creates or updates a language and its calendar.
type LanguageRequest struct {
	Name               string `json:"name" validate:"required,max=60"`
	SignupBegin        string `json:"signup_begin" validate:"required"`
	SignupRndWindowEnd string `json:"signup_rnd_window_end" validate:"required"`
	SignupManualEnd    string `json:"signup_manual_end" validate:"required"`
	SignupFCFSBegin    string `json:"signup_fcfs_begin" validate:"required"`
	SignupEnd          string `json:"signup_end" validate:"required"`
}

// CourseRequest creates or updates a course.
type CourseRequest struct {
	LanguageID  string `json:"language_id" validate:"required"`
	Level       string `json:"level" validate:"required,max=30"`
	Alternative string `json:"alternative" validate:"max=10"`
	Limit       int    `json:"limit" validate:"required,gt=0"`
	Price       int    `json:"price" validate:"gte=0"`
}
