package mail

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/noah-isme/langcenter-api/pkg/jobs"
)

// IsTransient classifies notification failures.
//
// Expected failures a caller may retry later: a full or stopped mail queue,
// any net.Error, refused/reset connections, broken pipes and deadline expiry.
// Everything else, notably ErrInvalidMessage, is fatal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidMessage) {
		return false
	}
	if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrQueueStopped) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
