// Package session implements component C: the per-connection state machine
// that gates which frame kinds the decoder's output is allowed to produce
// next, and turns accepted frames into the acknowledgement bytes written
// back to the device.
package session

import (
	"time"

	"github.com/404minds/telematics-gateway/internal/codec"
	"github.com/404minds/telematics-gateway/internal/ingesterr"
	"github.com/404minds/telematics-gateway/internal/wire"
)

// State is one of the three lifecycle states a session passes through.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	Closed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "closed"
	}
}

// IdleTimeout is the specification's fixed idle read timeout: no bytes
// received for this long closes the session.
const IdleTimeout = 5 * time.Minute

// Machine tracks one connection's session state. It is owned exclusively by
// that connection's read goroutine; nothing else may call its methods.
type Machine struct {
	state           State
	imei            string
	connectedAt     time.Time
	lastDataAt      time.Time
	packetsReceived uint64
}

// New creates a Machine in the Unauthenticated state.
func New(now time.Time) *Machine {
	return &Machine{state: Unauthenticated, connectedAt: now, lastDataAt: now}
}

func (m *Machine) State() State              { return m.state }
func (m *Machine) IMEI() string               { return m.imei }
func (m *Machine) ConnectedAt() time.Time     { return m.connectedAt }
func (m *Machine) LastDataAt() time.Time      { return m.lastDataAt }
func (m *Machine) PacketsReceived() uint64    { return m.packetsReceived }

// Phase reports the decoder phase matching the current state, so the read
// loop can call codec.Decode without reaching into state internals.
func (m *Machine) Phase() codec.Phase {
	if m.state == Authenticated {
		return codec.PhaseAuthenticated
	}
	return codec.PhaseUnauthenticated
}

// Touch records that bytes arrived, resetting the idle timer.
func (m *Machine) Touch(now time.Time) { m.lastDataAt = now }

// IdleSince reports whether the session has been idle for at least
// IdleTimeout as of now.
func (m *Machine) IdleSince(now time.Time) bool {
	return now.Sub(m.lastDataAt) >= IdleTimeout
}

// Outcome tells the connection supervisor what to do after one decoded
// frame has been applied to the state machine.
type Outcome struct {
	// Ack is the exact bytes to write back to the device, or nil if no
	// acknowledgement is due (only possible on a fault, where the
	// connection is closed instead).
	Ack []byte
	// AVL is set when the frame was an AVL batch that must be normalized
	// and handed to the sink dispatcher.
	AVL *wire.AVLFrame
	// Fault is set when the frame violates the state machine's gating
	// rules; the connection must be closed with no further processing.
	Fault error
}

// Apply advances the state machine given one decoder Result with
// Kind == codec.KindConsumed. Callers must not call Apply for
// KindIncomplete or KindFault results — those are handled directly by the
// read loop.
func (m *Machine) Apply(r codec.Result) Outcome {
	switch m.state {
	case Unauthenticated:
		if r.Login == nil {
			return Outcome{Fault: ingesterr.FaultUnexpectedAvl}
		}
		m.imei = r.Login.IMEI
		m.state = Authenticated
		m.packetsReceived++
		return Outcome{Ack: []byte{0x01}}

	case Authenticated:
		if r.Login != nil {
			return Outcome{Fault: ingesterr.FaultReloginDenied}
		}
		m.packetsReceived++
		n := len(r.AVL.Records)
		return Outcome{Ack: encodeU32Ack(n), AVL: r.AVL}

	default: // Closed
		return Outcome{Fault: ingesterr.FaultSessionClosed}
	}
}

// Close transitions the machine to Closed. Idempotent.
func (m *Machine) Close() { m.state = Closed }

func encodeU32Ack(n int) []byte {
	u := uint32(n)
	return []byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
}
