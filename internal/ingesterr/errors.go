// Package ingesterr defines the fault vocabulary used across the protocol
// engine. Every fault that tears down a connection is a sentinel error here
// so the supervisor can dispatch on identity (errors.Is) rather than on
// strings, and a Kind for cheap, allocation-free telemetry labeling.
package ingesterr

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a fault for logging and metrics. It intentionally mirrors
// the fault table in the specification rather than Go's error chain, since
// callers need a stable label even after the error has been wrapped.
type Kind string

const (
	KindBadLogin        Kind = "bad_login"
	KindBadPreamble     Kind = "bad_preamble"
	KindBadLength       Kind = "bad_length"
	KindBadCodec        Kind = "bad_codec"
	KindBadRecordCount  Kind = "bad_record_count"
	KindBadCrc          Kind = "bad_crc"
	KindUnexpectedAvl   Kind = "unexpected_avl"
	KindReloginDenied   Kind = "relogin_denied"
	KindBufferOverflow  Kind = "buffer_overflow"
	KindSocketError     Kind = "socket_error"
	KindIdleTimeout     Kind = "idle_timeout"
	KindSinkError       Kind = "sink_error"
	KindBindError       Kind = "bind_error"
	KindSessionClosed   Kind = "session_closed"
)

var (
	ErrBadLogin        = errors.New("teltonika: malformed login frame")
	ErrBadPreamble     = errors.New("teltonika: preamble is not 0x00000000")
	ErrBadLength       = errors.New("teltonika: data field length out of range")
	ErrBadCodec        = errors.New("teltonika: unsupported codec id")
	ErrBadRecordCount  = errors.New("teltonika: record count mismatch or trailing bytes")
	ErrBadCrc          = errors.New("teltonika: crc-16/ibm mismatch")
	ErrUnexpectedAvl   = errors.New("teltonika: avl frame before login")
	ErrReloginDenied   = errors.New("teltonika: login received on an already-authenticated session")
	ErrBufferOverflow  = errors.New("teltonika: read buffer exceeded cap without a complete frame")
	ErrIdleTimeout     = errors.New("teltonika: session idle timeout")
	ErrSessionClosed   = errors.New("teltonika: frame received on a closed session")
)

// Fault pairs a Kind with the sentinel error that identifies it, so call
// sites can log structured fields without re-deriving the Kind from the
// error's text.
type Fault struct {
	Kind Kind
	Err  error
}

func (f Fault) Error() string { return f.Err.Error() }
func (f Fault) Unwrap() error { return f.Err }

func newFault(k Kind, err error) Fault { return Fault{Kind: k, Err: err} }

var (
	FaultBadLogin       = newFault(KindBadLogin, ErrBadLogin)
	FaultBadPreamble    = newFault(KindBadPreamble, ErrBadPreamble)
	FaultBadLength      = newFault(KindBadLength, ErrBadLength)
	FaultBadCodec       = newFault(KindBadCodec, ErrBadCodec)
	FaultBadRecordCount = newFault(KindBadRecordCount, ErrBadRecordCount)
	FaultBadCrc         = newFault(KindBadCrc, ErrBadCrc)
	FaultUnexpectedAvl  = newFault(KindUnexpectedAvl, ErrUnexpectedAvl)
	FaultReloginDenied  = newFault(KindReloginDenied, ErrReloginDenied)
	FaultBufferOverflow = newFault(KindBufferOverflow, ErrBufferOverflow)
	FaultIdleTimeout    = newFault(KindIdleTimeout, ErrIdleTimeout)
	FaultSessionClosed  = newFault(KindSessionClosed, ErrSessionClosed)
)

// SocketError wraps a transport-level error with KindSocketError and a
// stack trace, so the supervisor logs it uniformly without inspecting
// net.Error directly and without losing where the read/write actually
// failed.
func SocketError(err error) Fault {
	return newFault(KindSocketError, pkgerrors.Wrap(err, "socket error"))
}

// SinkError wraps a delivery failure (non-2xx response or network error)
// for the dispatcher's own logging; it never reaches the connection
// supervisor since sink failures do not close sessions.
func SinkError(err error) Fault {
	return newFault(KindSinkError, pkgerrors.Wrap(err, "sink delivery failed"))
}

// BindError wraps a listener bind failure; callers exit(1) on this.
func BindError(err error) Fault {
	return newFault(KindBindError, pkgerrors.Wrap(err, "bind failed"))
}
