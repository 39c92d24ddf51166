package backend

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrConfig            = errors.New("backend is not configured")
	ErrMalformedResponse = errors.New("malformed response")
	ErrUnavailable       = errors.New("booking service unavailable")
)

// RemoteError is a non-2xx answer or an envelope with success=false.
type RemoteError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: backend responded %d: %s", e.Op, e.Status, e.Message)
}

func IsRemoteError(err error) *RemoteError {
	if err == nil {
		return nil
	}

	var remoteErr *RemoteError

	if errors.As(err, &remoteErr) {
		return remoteErr
	}

	return nil
}

// Describe turns a client error into a sentence fit for the user. The
// backend's own message wins when it sent one.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	if remoteErr := IsRemoteError(err); remoteErr != nil {
		if remoteErr.Message != "" {
			return remoteErr.Message
		}

		return "The booking service rejected the request."
	}

	switch {
	case errors.Is(err, ErrUnavailable):
		return "The booking service is temporarily unavailable. Please try again shortly."
	case errors.Is(err, context.DeadlineExceeded):
		return "The booking service took too long to respond. Please try again."
	case errors.Is(err, ErrMalformedResponse):
		return "The booking service sent an unexpected response. Please try again."
	default:
		return "Unable to reach the booking service. Please check your connection and try again."
	}
}
