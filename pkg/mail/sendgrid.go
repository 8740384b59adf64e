package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridSender delivers mail through the SendGrid v3 API.
type SendgridSender struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     *zap.Logger
}

// NewSendgridSender constructs a SendGrid backed sender.
func NewSendgridSender(apiKey, fromName, fromAddress, subjectPrefix string, logger *zap.Logger) *SendgridSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendgridSender{
		key:        apiKey,
		from:       sgmail.NewEmail(fromName, fromAddress),
		subjPrefix: subjectPrefix,
		logger:     logger,
	}
}

// Send posts one message.
func (s *SendgridSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		s.logger.Error("sendgrid rejected mail", zap.Int("status", res.StatusCode), zap.String("body", res.Body))
		return fmt.Errorf("sendgrid status %d", res.StatusCode)
	}
	return nil
}

func (s *SendgridSender) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Body))
	return m
}
