package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/models"
)

type courseParticipantsStub struct {
	byCourse map[string][]models.AttendanceDetail
	filters  []models.AttendanceFilter
}

func (s *courseParticipantsStub) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, error) {
	s.filters = append(s.filters, filter)
	return s.byCourse[filter.CourseID], nil
}

type announcementNotifierStub struct {
	sent []string
	fail map[string]error
}

func (s *announcementNotifierStub) NotifyAnnouncement(ctx context.Context, recipient *models.Applicant, subject, body string) error {
	if err := s.fail[recipient.Mail]; err != nil {
		return err
	}
	s.sent = append(s.sent, recipient.Mail)
	return nil
}

func participant(id, mail string) models.AttendanceDetail {
	return models.AttendanceDetail{Attendance: models.Attendance{ApplicantID: id}, FirstName: "First", LastName: id, Mail: mail}
}

func TestAnnouncementMailsEachParticipantOnce(t *testing.T) {
	lister := &courseParticipantsStub{byCourse: map[string][]models.AttendanceDetail{
		"c1": {participant("x", "x@example.org"), participant("y", "y@example.org")},
		"c2": {participant("x", "X@example.org"), participant("z", "z@example.org")},
	}}
	notifier := &announcementNotifierStub{}
	svc := NewAnnouncementService(lister, notifier, nil, zap.NewNop())

	result, err := svc.Send(context.Background(), dto.AnnouncementRequest{
		CourseIDs: []string{"c1", "c2"},
		Subject:   " Room change ",
		Body:      "We meet in room 4.",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Recipients)
	assert.Equal(t, 3, result.Queued)
	assert.Equal(t, []string{"x@example.org", "y@example.org", "z@example.org"}, notifier.sent)
	for _, filter := range lister.filters {
		require.NotNil(t, filter.Waiting)
		assert.False(t, *filter.Waiting)
	}
}

func TestAnnouncementIncludesWaitingOnRequest(t *testing.T) {
	lister := &courseParticipantsStub{byCourse: map[string][]models.AttendanceDetail{}}
	svc := NewAnnouncementService(lister, &announcementNotifierStub{}, nil, zap.NewNop())

	_, err := svc.Send(context.Background(), dto.AnnouncementRequest{
		CourseIDs:      []string{"c1"},
		Subject:        "Hello",
		Body:           "Body",
		IncludeWaiting: true,
	})
	require.NoError(t, err)
	require.Len(t, lister.filters, 1)
	assert.Nil(t, lister.filters[0].Waiting)
}

func TestAnnouncementReportsUnqueuedRecipients(t *testing.T) {
	lister := &courseParticipantsStub{byCourse: map[string][]models.AttendanceDetail{
		"c1": {participant("x", "x@example.org"), participant("y", "y@example.org")},
	}}
	notifier := &announcementNotifierStub{fail: map[string]error{"y@example.org": errors.New("queue stopped")}}
	svc := NewAnnouncementService(lister, notifier, nil, zap.NewNop())

	result, err := svc.Send(context.Background(), dto.AnnouncementRequest{CourseIDs: []string{"c1"}, Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)
	assert.Equal(t, []string{"y@example.org"}, result.Unsent)
}

func TestAnnouncementRequiresCourses(t *testing.T) {
	svc := NewAnnouncementService(&courseParticipantsStub{}, &announcementNotifierStub{}, nil, zap.NewNop())

	_, err := svc.Send(context.Background(), dto.AnnouncementRequest{Subject: "s", Body: "b"})
	require.Error(t, err)
}
