package libemit

import (
	"fmt"
	"net/url"

	"github.com/pkg/errors"
)

var (
	ErrInvalidTier      = errors.New("invalid listener tier")
	ErrNilListener      = errors.New("listener cannot be nil")
	ErrNotConnected     = errors.New("socket is not connected")
	ErrAlreadyOpened    = errors.New("socket client already opened")
	ErrConnectionClosed = errors.New("connection has been closed")
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrTerminated       = errors.New("program exit")
	ErrRateLimit        = errors.New("rate limit exceeded")
)

// PanicError is produced when a listener panics during an emission. It takes the
// place of the listener's error in the dispatch policy.
type PanicError struct {
	Event string
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("listener panic on %q: %v", e.Event, e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

type ErrUnrecoverableConnection struct {
	err error
	url url.URL
}

func (e ErrUnrecoverableConnection) Error() string {
	return fmt.Sprintf("Unrecoverable connection error: %s to %s", e.err, e.url.String())
}

func (e ErrUnrecoverableConnection) Unwrap() error { return e.err }

func WrapErrorUnrecoverableConnection(err error, url url.URL) *ErrUnrecoverableConnection {
	if err == nil {
		return nil
	}
	return &ErrUnrecoverableConnection{
		err: err,
		url: url,
	}
}
