package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

type applicantDirectoryStub struct {
	terms   []string
	limit   int
	results []models.Applicant
	err     error
}

func (s *applicantDirectoryStub) Search(ctx context.Context, terms []string, limit int) ([]models.Applicant, error) {
	s.terms = terms
	s.limit = limit
	return s.results, s.err
}

func (s *applicantDirectoryStub) ListSharingTag(ctx context.Context) ([]models.Applicant, error) {
	return s.results, s.err
}

func newApplicantServiceFixture(g *graphFixture) (*ApplicantService, *applicantStoreStub, *applicantDirectoryStub) {
	store := &applicantStoreStub{fixture: g}
	directory := &applicantDirectoryStub{}
	return NewApplicantService(store, directory, nil, zap.NewNop()), store, directory
}

func TestApplicantSearchSplitsQueryAndClampsLimit(t *testing.T) {
	svc, _, directory := newApplicantServiceFixture(newGraphFixture())

	_, err := svc.Search(context.Background(), "  ada   lovelace ", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"ada", "lovelace"}, directory.terms)
	assert.Equal(t, defaultSearchLimit, directory.limit)

	_, err = svc.Search(context.Background(), "ada", 10000)
	require.NoError(t, err)
	assert.Equal(t, maxSearchLimit, directory.limit)
}

func TestApplicantGetMissingIsNotFound(t *testing.T) {
	svc, _, _ := newApplicantServiceFixture(newGraphFixture())

	_, err := svc.Get(context.Background(), "ghost")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestApplicantUpdateReplacesPersonalData(t *testing.T) {
	g := newGraphFixture()
	g.applicant("x", false)
	svc, store, _ := newApplicantServiceFixture(g)

	updated, err := svc.Update(context.Background(), "x", dto.ApplicantUpdateRequest{
		FirstName: " Ada ",
		LastName:  "Lovelace",
		Mail:      " ada@example.org ",
		Tag:       "AL",
		IsStudent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "ada@example.org", updated.Mail)
	assert.True(t, updated.IsStudent)
	require.Len(t, store.updated, 1)
}

func TestApplicantUpdateRejectsForeignMail(t *testing.T) {
	g := newGraphFixture()
	g.applicant("x", false)
	g.applicant("y", false)
	svc, store, _ := newApplicantServiceFixture(g)

	_, err := svc.Update(context.Background(), "x", dto.ApplicantUpdateRequest{
		FirstName: "First",
		LastName:  "x",
		Mail:      "Y@example.org",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Empty(t, store.updated)
}

func TestApplicantDuplicatesGroupsByTag(t *testing.T) {
	svc, _, directory := newApplicantServiceFixture(newGraphFixture())
	directory.results = []models.Applicant{
		{ID: "a", Tag: "AB"},
		{ID: "b", Tag: "AB"},
		{ID: "c", Tag: "CD"},
		{ID: "d", Tag: "CD"},
	}

	groups, err := svc.Duplicates(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "AB", groups[0].Tag)
	assert.Len(t, groups[0].Applicants, 2)
	assert.Equal(t, "d", groups[1].Applicants[1].ID)
}

func TestApplicantDuplicatesWrapsStoreError(t *testing.T) {
	svc, _, directory := newApplicantServiceFixture(newGraphFixture())
	directory.err = errors.New("timeout")

	_, err := svc.Duplicates(context.Background())
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}
