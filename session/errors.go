package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// Kind - Failure class of a session error.
type Kind int

// Session failure classes.
const (
	KindTransport Kind = iota
	KindTimeout
	KindAuthentication
)

func (kind Kind) String() string {
	switch kind {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindAuthentication:
		return "authentication"
	}
	return fmt.Sprintf("kind(%d)", int(kind))
}

// Error - Classified failure of a session operation.
type Error struct {
	Kind    Kind
	Address string
	Op      string
	Err     error
}

func (err *Error) Error() string {
	return fmt.Sprintf("%v %v: %v failure: %v", err.Op, err.Address, err.Kind, err.Err)
}

func (err *Error) Unwrap() error {
	return err.Err
}

// KindOf - Kind of the first session error in the chain. False if there is none.
func KindOf(err error) (Kind, bool) {
	var sessionErr *Error
	if errors.As(err, &sessionErr) {
		return sessionErr.Kind, true
	}
	return KindTransport, false
}

// classify wraps err in a session error, guessing the kind from the cause.
// Already classified errors pass through unchanged.
func classify(address string, op string, err error) *Error {
	var sessionErr *Error
	if errors.As(err, &sessionErr) {
		return sessionErr
	}
	return &Error{
		Kind:    kindOfCause(err),
		Address: address,
		Op:      op,
		Err:     err,
	}
}

func kindOfCause(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	// The SSH handshake flattens its causes into the message
	message := err.Error()
	switch {
	case strings.Contains(message, "unable to authenticate"), strings.Contains(message, "no supported methods remain"):
		return KindAuthentication
	case strings.Contains(message, "i/o timeout"), strings.Contains(message, "deadline exceeded"):
		return KindTimeout
	}
	return KindTransport
}
