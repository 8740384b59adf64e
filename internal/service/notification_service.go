package service

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/internal/models"
	"github.com/noah-isme/langcenter-api/pkg/jobs"
	"github.com/noah-isme/langcenter-api/pkg/mail"
)

const (
	notificationStatus  = "status"
	notificationSignoff = "signoff"
	notificationPreterm = "preterm"
	notificationNotice  = "announcement"
)

var notificationTemplates = template.Must(template.New("notifications").Parse(`
{{define "status_accepted"}}Hello {{.Name}},

{{if .Restock}}a seat in {{.Course}} has become available and it is yours now.{{else}}you have been assigned a seat in {{.Course}}.{{end}}

Course fee: {{printf "%.2f" .Amount}} EUR{{if .Discount}} ({{.DiscountPercent}}% discount){{end}}

If you cannot attend, please sign off so the seat goes to the next applicant:
{{.BaseURL}}/signoff?course={{.CourseID}}&id={{.SignoffID}}
{{end}}
{{define "status_waiting"}}Hello {{.Name}},

{{.Course}} is fully booked at the moment. You remain on the waiting list and will be
notified as soon as a seat becomes available.

To leave the waiting list, sign off here:
{{.BaseURL}}/signoff?course={{.CourseID}}&id={{.SignoffID}}
{{end}}
{{define "signoff"}}Hello {{.Name}},

you have been signed off from {{.Course}}.
{{end}}
{{define "preterm"}}Hello,

your priority signup token is valid until {{.Expires}}:

{{.Token}}

Use it at {{.BaseURL}}/signup?token={{.Token}}
{{end}}
{{define "announcement"}}Hello {{.Name}},

{{.Body}}
{{end}}
`))

// NotificationConfig tunes the asynchronous mail queue.
type NotificationConfig struct {
	BaseURL       string
	SignoffSecret string
	Workers       int
	BufferSize    int
	MaxRetries    int
	RetryDelay    time.Duration
}

type statusMailData struct {
	Name            string
	Course          string
	CourseID        string
	Restock         bool
	Amount          float64
	Discount        float64
	DiscountPercent int
	BaseURL         string
	SignoffID       string
}

// NotificationService renders applicant mails and hands them to the mail queue.
type NotificationService struct {
	sender        mail.Sender
	queue         *jobs.Queue
	metrics       *MetricsService
	logger        *zap.Logger
	baseURL       string
	signoffSecret string
}

// NewNotificationService wires the sender behind a worker queue. Call Start before notifying.
func NewNotificationService(sender mail.Sender, cfg NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		sender:        sender,
		metrics:       metrics,
		logger:        logger,
		baseURL:       cfg.BaseURL,
		signoffSecret: cfg.SignoffSecret,
	}
	s.queue = jobs.NewQueue("mail", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnFailure: func(job jobs.Job, err error) {
			s.metrics.RecordNotification(job.Type, "failed")
		},
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Shutdown delivers the queued mails until ctx is done, then stops the workers.
func (s *NotificationService) Shutdown(ctx context.Context) {
	if err := s.queue.Drain(ctx); err != nil {
		s.logger.Error("mail queue not drained", zap.Error(err))
	}
	s.logStats()
}

// Stop terminates the delivery workers immediately. Buffered mails are dropped.
func (s *NotificationService) Stop() {
	if pending := s.queue.Len(); pending > 0 {
		s.logger.Warn("dropping queued mails on shutdown", zap.Int("pending", pending))
	}
	s.queue.Stop()
	s.logStats()
}

func (s *NotificationService) logStats() {
	stats := s.queue.Stats()
	s.logger.Info("mail queue stopped",
		zap.Uint64("processed", stats.Processed),
		zap.Uint64("retried", stats.Retried),
		zap.Uint64("failed", stats.Failed))
}

// QueueStats reports delivery outcomes of the mail queue.
func (s *NotificationService) QueueStats() jobs.Stats {
	return s.queue.Stats()
}

// NotifyStatus queues the status mail for the applicant's attendance of course.
// The wording depends on whether the attendance is waiting; restock marks a seat granted
// after a rejection mail went out earlier.
func (s *NotificationService) NotifyStatus(ctx context.Context, applicant *models.Applicant, course *models.Course, restock bool) error {
	if applicant == nil || course == nil {
		return fmt.Errorf("%w: status mail without applicant or course", mail.ErrInvalidMessage)
	}
	att := applicant.Attendance(course.ID)
	if att == nil {
		return fmt.Errorf("%w: %s does not attend %s", mail.ErrInvalidMessage, applicant.ID, course.ID)
	}

	data := statusMailData{
		Name:      applicant.FullName(),
		Course:    course.FullName(),
		CourseID:  course.ID,
		Restock:   restock,
		BaseURL:   s.baseURL,
		SignoffID: SignoffID(s.signoffSecret, applicant.ID),
	}
	tmpl, subject := "status_waiting", fmt.Sprintf("Waiting list: %s", course.FullName())
	if !att.Waiting {
		tmpl, subject = "status_accepted", fmt.Sprintf("Seat confirmed: %s", course.FullName())
		data.Discount = att.Discount
		data.DiscountPercent = int(att.Discount * 100)
		data.Amount = float64(course.Price) * (1 - att.Discount)
	}
	return s.enqueue(ctx, notificationStatus, applicant, subject, tmpl, data)
}

// NotifySignoff confirms a removed attendance.
func (s *NotificationService) NotifySignoff(ctx context.Context, applicant *models.Applicant, course *models.Course) error {
	if applicant == nil || course == nil {
		return fmt.Errorf("%w: signoff mail without applicant or course", mail.ErrInvalidMessage)
	}
	data := statusMailData{Name: applicant.FullName(), Course: course.FullName(), CourseID: course.ID}
	return s.enqueue(ctx, notificationSignoff, applicant, fmt.Sprintf("Signed off: %s", course.FullName()), "signoff", data)
}

// NotifyPretermToken mails a priority signup token.
func (s *NotificationService) NotifyPretermToken(ctx context.Context, address, token string, expires time.Time) error {
	data := struct {
		Token   string
		Expires string
		BaseURL string
	}{Token: token, Expires: expires.UTC().Format(time.RFC1123), BaseURL: s.baseURL}
	recipient := &models.Applicant{Mail: address}
	return s.enqueue(ctx, notificationPreterm, recipient, "Priority signup token", "preterm", data)
}

// NotifyAnnouncement queues a free-text mail. The body is inserted verbatim, never parsed as a template.
func (s *NotificationService) NotifyAnnouncement(ctx context.Context, recipient *models.Applicant, subject, body string) error {
	if recipient == nil {
		return fmt.Errorf("%w: announcement without recipient", mail.ErrInvalidMessage)
	}
	data := struct {
		Name string
		Body string
	}{Name: recipient.FullName(), Body: body}
	return s.enqueue(ctx, notificationNotice, recipient, subject, "announcement", data)
}

// enqueue waits for buffer space while ctx allows it.
func (s *NotificationService) enqueue(ctx context.Context, kind string, applicant *models.Applicant, subject, tmpl string, data interface{}) error {
	body, err := mail.Render(notificationTemplates.Lookup(tmpl), data)
	if err != nil {
		return err
	}
	msg := mail.Message{
		To:      []netmail.Address{{Name: applicant.FullName(), Address: applicant.Mail}},
		Subject: subject,
		Body:    body,
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := s.queue.EnqueueWait(ctx, jobs.Job{Type: kind, Payload: msg}); err != nil {
		return err
	}
	s.metrics.RecordNotification(kind, "queued")
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mail.Message)
	if !ok {
		return fmt.Errorf("%w: unexpected payload %T", mail.ErrInvalidMessage, job.Payload)
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		if errors.Is(err, mail.ErrInvalidMessage) {
			s.logger.Error("undeliverable mail", zap.String("job_id", job.ID), zap.Error(err))
			s.metrics.RecordNotification(job.Type, "failed")
			return nil
		}
		return err
	}
	s.metrics.RecordNotification(job.Type, "sent")
	return nil
}
