// Package mail renders and delivers applicant notifications.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"text/template"
)

// ErrInvalidMessage marks a message that can never be delivered.
var ErrInvalidMessage = errors.New("invalid mail message")

// Message is a plain-text mail.
type Message struct {
	To      []mail.Address
	Subject string
	Body    string
}

// Validate reports whether the message can be handed to a sender.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}
	if len(m.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrInvalidMessage)
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to.Address); err != nil {
			return fmt.Errorf("%w: recipient %q: %v", ErrInvalidMessage, to.Address, err)
		}
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Render executes a text template with missingkey=error.
func Render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Option("missingkey=error").Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: render %s: %v", ErrInvalidMessage, tmpl.Name(), err)
	}
	return buf.String(), nil
}
