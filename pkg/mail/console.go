package mail

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ConsoleSender logs mails instead of delivering them and keeps a copy for inspection.
type ConsoleSender struct {
	subjPrefix string
	logger     *zap.Logger

	mu   sync.Mutex
	sent []Message
}

// NewConsoleSender constructs a ConsoleSender.
func NewConsoleSender(subjectPrefix string, logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{subjPrefix: subjectPrefix, logger: logger}
}

// Send logs the message.
func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, addr.String())
	}
	s.logger.Info("mail",
		zap.String("to", strings.Join(to, ", ")),
		zap.String("subject", s.subjPrefix+msg.Subject),
		zap.String("body", msg.Body),
	)
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of all messages sent so far.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
