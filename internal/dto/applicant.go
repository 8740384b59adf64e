package dto

import "strings"

// ApplicantUpdateRequest replaces the personal data of an applicant.
type ApplicantUpdateRequest struct {
	FirstName string `json:"first_name" validate:"required,max=60"`
	LastName  string `json:"last_name" validate:"required,max=60"`
	Mail      string `json:"mail" validate:"required,email,max=120"`
	Tag       string `json:"tag" validate:"max=30"`
	Origin    string `json:"origin" validate:"max=60"`
	IsStudent bool   `json:"is_student"`
}

// Normalize trims the free-text fields before validation.
func (r *ApplicantUpdateRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Mail = strings.TrimSpace(r.Mail)
	r.Tag = strings.TrimSpace(r.Tag)
	r.Origin = strings.TrimSpace(r.Origin)
}

// AnnouncementRequest mails a free text to the participants of courses.
type AnnouncementRequest struct {
	CourseIDs      []string `json:"course_ids" validate:"required,min=1,dive,required"`
	Subject        string   `json:"subject" validate:"required,max=200"`
	Body           string   `json:"body" validate:"required,max=20000"`
	IncludeWaiting bool     `json:"include_waiting"`
}

// AnnouncementResult reports how many mails were queued.
type AnnouncementResult struct {
	Recipients int      `json:"recipients"`
	Queued     int      `json:"queued"`
	Unsent     []string `json:"unsent,omitempty"`
}

// ParallelCleanupRequest limits the cleanup to courses; empty means every course.
type ParallelCleanupRequest struct {
	CourseIDs []string `json:"course_ids" validate:"omitempty,dive,required"`
}
