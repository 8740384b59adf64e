package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 200
)

type applicantDirectory interface {
	Search(ctx context.Context, terms []string, limit int) ([]models.Applicant, error)
	ListSharingTag(ctx context.Context) ([]models.Applicant, error)
}

// ApplicantService looks up and edits applicants for the administration.
type ApplicantService struct {
	applicants applicantStore
	directory  applicantDirectory
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewApplicantService constructs an ApplicantService.
func NewApplicantService(applicants applicantStore, directory applicantDirectory, validate *validator.Validate, logger *zap.Logger) *ApplicantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicantService{applicants: applicants, directory: directory, validator: validate, logger: logger}
}

// Search splits query on whitespace; every word must match first name, last name, mail or tag.
func (s *ApplicantService) Search(ctx context.Context, query string, limit int) ([]models.Applicant, error) {
	switch {
	case limit <= 0:
		limit = defaultSearchLimit
	case limit > maxSearchLimit:
		limit = maxSearchLimit
	}
	applicants, err := s.directory.Search(ctx, strings.Fields(query), limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search applicants")
	}
	return applicants, nil
}

// Get returns an applicant with attendances.
func (s *ApplicantService) Get(ctx context.Context, id string) (*models.Applicant, error) {
	applicant, err := s.applicants.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	if err := s.applicants.LoadAttendances(ctx, nil, applicant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendances")
	}
	return applicant, nil
}

// Update replaces the personal data of an applicant. The mail address stays unique.
func (s *ApplicantService) Update(ctx context.Context, id string, req dto.ApplicantUpdateRequest) (*models.Applicant, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid applicant payload")
	}
	applicant, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(applicant.Mail, req.Mail) {
		other, err := s.applicants.FindByMail(ctx, nil, req.Mail)
		switch {
		case err == nil && other.ID != applicant.ID:
			return nil, appErrors.Clone(appErrors.ErrConflict, "mail address is used by another applicant")
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check mail address")
		}
	}

	applicant.FirstName = req.FirstName
	applicant.LastName = req.LastName
	applicant.Mail = req.Mail
	applicant.Tag = req.Tag
	applicant.Origin = req.Origin
	applicant.IsStudent = req.IsStudent
	if err := s.applicants.Update(ctx, nil, applicant); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, appErrors.Clone(appErrors.ErrConflict, "mail address is used by another applicant")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update applicant")
	}
	s.logger.Info("applicant updated", zap.String("applicant_id", applicant.ID))
	return applicant, nil
}

// Duplicates groups applicants that registered with the same tag.
func (s *ApplicantService) Duplicates(ctx context.Context) ([]models.DuplicateGroup, error) {
	applicants, err := s.directory.ListSharingTag(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list duplicates")
	}
	groups := []models.DuplicateGroup{}
	for _, applicant := range applicants {
		if n := len(groups); n > 0 && groups[n-1].Tag == applicant.Tag {
			groups[n-1].Applicants = append(groups[n-1].Applicants, applicant)
			continue
		}
		groups = append(groups, models.DuplicateGroup{Tag: applicant.Tag, Applicants: []models.Applicant{applicant}})
	}
	return groups, nil
}
