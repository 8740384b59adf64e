package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	netmail "net/mail"
	"syscall"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/langcenter-api/pkg/jobs"
)

func TestMessageValidate(t *testing.T) {
	ok := Message{To: []netmail.Address{{Name: "Ada", Address: "ada@example.org"}}, Subject: "Status", Body: "hello"}
	require.NoError(t, ok.Validate())

	noRecipient := Message{Subject: "Status", Body: "hello"}
	assert.ErrorIs(t, noRecipient.Validate(), ErrInvalidMessage)

	badAddress := Message{To: []netmail.Address{{Address: "not-an-address"}}, Body: "hello"}
	assert.ErrorIs(t, badAddress.Validate(), ErrInvalidMessage)

	empty := Message{To: []netmail.Address{{Address: "ada@example.org"}}, Body: "  "}
	assert.ErrorIs(t, empty.Validate(), ErrInvalidMessage)
}

func TestRenderMissingKeyIsInvalid(t *testing.T) {
	tmpl := template.Must(template.New("status").Parse("Hello {{.Name}}"))

	out, err := Render(tmpl, map[string]string{"Name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", out)

	_, err = Render(tmpl, map[string]string{})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"queue full", fmt.Errorf("enqueue: %w", jobs.ErrQueueFull), true},
		{"queue stopped", jobs.ErrQueueStopped, true},
		{"connection refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"reset", fmt.Errorf("send: %w", syscall.ECONNRESET), true},
		{"timeout", timeoutErr{}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"invalid message", fmt.Errorf("%w: no recipients", ErrInvalidMessage), false},
		{"other", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestConsoleSenderRecordsMessages(t *testing.T) {
	s := NewConsoleSender("[SPZ] ", nil)
	msg := Message{To: []netmail.Address{{Address: "ada@example.org"}}, Subject: "Status", Body: "hello"}

	require.NoError(t, s.Send(context.Background(), msg))
	require.Error(t, s.Send(context.Background(), Message{Body: "x"}))

	sent := s.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Status", sent[0].Subject)
}
