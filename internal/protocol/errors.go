// internal/protocol/errors.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// ConnectErrorKind classifies why a connection attempt failed
type ConnectErrorKind string

const (
	ConnectErrorTimeout          ConnectErrorKind = "TIMEOUT"
	ConnectErrorRefused          ConnectErrorKind = "REFUSED"
	ConnectErrorPermissionDenied ConnectErrorKind = "PERMISSION_DENIED"
	ConnectErrorDeviceNotFound   ConnectErrorKind = "DEVICE_NOT_FOUND"
	ConnectErrorUnsupported      ConnectErrorKind = "UNSUPPORTED"
)

// ConnectError is returned by Transport.Connect
type ConnectError struct {
	Kind   ConnectErrorKind
	Target string
	Err    error
}

// NewConnectError creates a connect error of the given kind
func NewConnectError(kind ConnectErrorKind, target string, err error) *ConnectError {
	return &ConnectError{Kind: kind, Target: target, Err: err}
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connect %s: %s", e.Target, e.Kind)
	}
	return fmt.Sprintf("connect %s: %s: %v", e.Target, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// UserMessage returns a short message fit for display. The underlying cause
// is left out.
func (e *ConnectError) UserMessage() string {
	switch e.Kind {
	case ConnectErrorTimeout:
		return fmt.Sprintf("connection to %s timed out", e.Target)
	case ConnectErrorPermissionDenied:
		return fmt.Sprintf("permission denied connecting to %s", e.Target)
	case ConnectErrorDeviceNotFound:
		return fmt.Sprintf("device %s not found", e.Target)
	case ConnectErrorUnsupported:
		return "connection type not supported on this host"
	default:
		return fmt.Sprintf("could not connect to %s", e.Target)
	}
}

// IsConnectError reports whether err is a ConnectError of the given kind
func IsConnectError(err error, kind ConnectErrorKind) bool {
	var connErr *ConnectError
	return errors.As(err, &connErr) && connErr.Kind == kind
}

// ClassifyConnectError maps a dial or open failure onto a ConnectError.
// Unrecognised failures are reported as Refused.
func ClassifyConnectError(target string, err error) *ConnectError {
	var connErr *ConnectError
	if errors.As(err, &connErr) {
		return connErr
	}

	var netErr net.Error
	var dnsErr *net.DNSError

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return NewConnectError(ConnectErrorTimeout, target, err)
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		return NewConnectError(ConnectErrorDeviceNotFound, target, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewConnectError(ConnectErrorTimeout, target, err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return NewConnectError(ConnectErrorRefused, target, err)
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM), errors.Is(err, os.ErrPermission):
		return NewConnectError(ConnectErrorPermissionDenied, target, err)
	case errors.Is(err, syscall.ENOENT), errors.Is(err, os.ErrNotExist):
		return NewConnectError(ConnectErrorDeviceNotFound, target, err)
	case errors.Is(err, syscall.EAFNOSUPPORT), errors.Is(err, syscall.EPROTONOSUPPORT):
		return NewConnectError(ConnectErrorUnsupported, target, err)
	default:
		return NewConnectError(ConnectErrorRefused, target, err)
	}
}

// connectAborted wraps a cancellation observed during Connect
func connectAborted(target string, err error) error {
	return fmt.Errorf("connect %s: %w", target, err)
}
