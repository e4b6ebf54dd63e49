package recon

import (
	"context"
	stderrors "errors"
	"net"
	"slices"
	"syscall"
)

// classifyDialError maps a failed connect attempt to a port status. The
// errno tables are per platform; see classify_unix.go and classify_windows.go.
// Reason is only set for StatusError.
func classifyDialError(err error, deadlineHit bool) (Status, string) {
	if deadlineHit {
		return StatusFiltered, ""
	}

	var errno syscall.Errno
	if stderrors.As(err, &errno) {
		switch {
		case slices.Contains(refusedErrnos, errno):
			return StatusClosed, ""
		case slices.Contains(unreachableErrnos, errno):
			return StatusFiltered, ""
		}
		return StatusError, errno.Error()
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return StatusFiltered, ""
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return StatusFiltered, ""
	}
	return StatusError, err.Error()
}
