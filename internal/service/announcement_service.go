package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

type announcementNotifier interface {
	NotifyAnnouncement(ctx context.Context, recipient *models.Applicant, subject, body string) error
}

// AnnouncementService mails free-text messages to course participants.
type AnnouncementService struct {
	attendances attendanceLister
	notifier    announcementNotifier
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAnnouncementService constructs an AnnouncementService.
func NewAnnouncementService(attendances attendanceLister, notifier announcementNotifier, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{attendances: attendances, notifier: notifier, validator: validate, logger: logger}
}

// Send queues one mail per participant of the requested courses. An applicant attending
// several of them is mailed once. Waiting applicants are included only on request.
func (s *AnnouncementService) Send(ctx context.Context, req dto.AnnouncementRequest) (*dto.AnnouncementResult, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	var waiting *bool
	if !req.IncludeWaiting {
		active := false
		waiting = &active
	}
	seen := make(map[string]struct{})
	var recipients []*models.Applicant
	for _, courseID := range req.CourseIDs {
		details, err := s.attendances.List(ctx, models.AttendanceFilter{CourseID: courseID, Waiting: waiting})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course participants")
		}
		for _, d := range details {
			key := strings.ToLower(d.Mail)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			recipients = append(recipients, &models.Applicant{ID: d.ApplicantID, FirstName: d.FirstName, LastName: d.LastName, Mail: d.Mail})
		}
	}

	result := &dto.AnnouncementResult{Recipients: len(recipients)}
	for _, recipient := range recipients {
		if err := s.notifier.NotifyAnnouncement(ctx, recipient, req.Subject, req.Body); err != nil {
			s.logger.Warn("announcement not queued", zap.String("applicant_id", recipient.ID), zap.Error(err))
			result.Unsent = append(result.Unsent, recipient.Mail)
			continue
		}
		result.Queued++
	}
	s.logger.Info("announcement queued",
		zap.Strings("course_ids", req.CourseIDs),
		zap.Int("recipients", result.Recipients),
		zap.Int("queued", result.Queued))
	return result, nil
}
