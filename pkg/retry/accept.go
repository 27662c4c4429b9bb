package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// IsAcceptErrorRetryable reports whether an Accept error is transient.
// Running out of file descriptors and aborted handshakes clear up on their
// own; a closed listener never does.
func IsAcceptErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EAGAIN)
}

// Accept waits for the next connection on ln, retrying transient errors.
// Errors matching opts.RetryableErrors are retried as well.
func Accept(ctx context.Context, ln net.Listener, opts Options) (net.Conn, error) {
	fragments := opts.RetryableErrors
	opts.IsRetryableFunc = func(err error) bool {
		if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
			return false
		}
		return IsAcceptErrorRetryable(err) || IsRetryable(err, fragments)
	}

	result, err := Do(ctx, func() (interface{}, error) {
		return ln.Accept()
	}, opts)
	if err != nil {
		return nil, err
	}

	conn, ok := result.(net.Conn)
	if !ok {
		return nil, fmt.Errorf("unexpected result type: %T", result)
	}
	return conn, nil
}
