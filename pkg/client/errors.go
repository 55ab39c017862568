package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"syscall"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	// It wraps the error of the last attempt.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrRetryInterrupted is returned when the context is cancelled while
	// waiting between attempts.
	ErrRetryInterrupted = errors.New("retry interrupted")

	// ErrEmptyResponse is returned when the service answers with an empty body.
	ErrEmptyResponse = errors.New("empty response body")
)

// Kind classifies a failure at the transport boundary.
type Kind string

const (
	// KindTransport represents connect, timeout and reset failures.
	KindTransport Kind = "transport"

	// KindService represents an HTTP failure status from the service.
	KindService Kind = "service"

	// KindDomain represents a failure that carries a database error code.
	KindDomain Kind = "domain"

	// KindMalformed represents a response that could not be decoded.
	KindMalformed Kind = "malformed"
)

// retryableStatus lists the HTTP statuses that signal a transient fault.
var retryableStatus = map[int]bool{
	500: true,
	502: true,
	503: true,
	504: true,
	408: true,
	429: true,
}

// domainCodePattern matches database error codes such as ORA-00942.
var domainCodePattern = regexp.MustCompile(`\b[A-Z]{3}-\d{5}\b`)

// Error is the tagged failure produced by the transport.
type Error struct {
	Kind       Kind
	StatusCode int
	Code       string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("report service ")
	b.WriteString(string(e.Kind))
	b.WriteString(" error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure may succeed on another attempt.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindService:
		return RetryableStatus(e.StatusCode)
	default:
		return false
	}
}

// RetryableStatus reports whether an HTTP status signals a transient fault.
func RetryableStatus(status int) bool {
	return retryableStatus[status]
}

// DomainCode returns the first database error code found in s, or "".
func DomainCode(s string) string {
	return domainCodePattern.FindString(s)
}

// Retryable decides whether err should be retried. A database error code
// anywhere in the error text makes it fatal.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrRetryInterrupted) || errors.Is(err, ErrRetryExhausted) {
		return false
	}
	if DomainCode(err.Error()) != "" {
		return false
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"connection reset", "connection refused", "unreachable", "timeout", "timed out"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
