package stt

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a transcription failure.
type Kind int

const (
	// KindAuth means the credential is missing or was rejected.
	KindAuth Kind = iota + 1
	// KindUpstream means the API answered with a failure status or a malformed payload.
	KindUpstream
	// KindNetwork means the API could not be reached or did not answer in time.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "AuthError"
	case KindUpstream:
		return "UpstreamError"
	case KindNetwork:
		return "NetworkError"
	default:
		return "UnknownError"
	}
}

// Error is returned by every Transcriber and Validator.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int // HTTP status when the API answered, 0 otherwise
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrMissingCredential is wrapped in an auth error when no API key is configured.
var ErrMissingCredential = errors.New("no API key configured")

// KindOf returns the kind of a transcription error, or 0 for other errors.
func KindOf(err error) Kind {
	var sttErr *Error
	if errors.As(err, &sttErr) {
		return sttErr.Kind
	}
	return 0
}

func IsAuth(err error) bool     { return KindOf(err) == KindAuth }
func IsUpstream(err error) bool { return KindOf(err) == KindUpstream }
func IsNetwork(err error) bool  { return KindOf(err) == KindNetwork }

// isTransportError reports failures where no usable answer came back from the API.
func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func authError(op string, status int, err error) *Error {
	return &Error{Kind: KindAuth, Op: op, StatusCode: status, Err: err}
}

func upstreamError(op string, status int, err error) *Error {
	return &Error{Kind: KindUpstream, Op: op, StatusCode: status, Err: err}
}

func networkError(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}
