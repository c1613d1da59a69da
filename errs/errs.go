// Package errs classifies connection-teardown errors so callers can pick
// a log severity: an expected close (peer hung up, our own shutdown)
// logs quietly; anything else is worth a louder log line.
package errs

import (
	stderrors "errors"
	"io"
	"strings"

	"go.osspkg.com/errors"

	"github.com/vnode/shim/codec"
)

// IsClosed reports whether err represents an ordinary connection
// teardown rather than a genuine I/O failure: a clean EOF, a closed
// network connection, a deadline, or a codec.Disconnect whose reason is
// itself a clean close.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}

	var disc *codec.Disconnect
	if stderrors.As(err, &disc) {
		return disc.Reason == "closed connection"
	}

	if errors.Is(err, io.EOF) ||
		strings.Contains(err.Error(), "i/o timeout") ||
		strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "deadline exceeded") {
		return true
	}
	return false
}
