// Package framing implements component A of the protocol engine: a
// per-session byte accumulator that turns arbitrarily fragmented TCP reads
// into a contiguous buffer the decoder can consume whole frames from.
//
// Reader owns no socket; it is fed bytes and asked to hand back a frame
// boundary, which keeps it testable against the byte-chunking invariant
// without a real connection.
package framing

import "github.com/404minds/telematics-gateway/internal/ingesterr"

// MaxBuffer is the hard cap on a session's unconsumed read buffer. Teltonika
// AVL frames top out well under this; a buffer this large with no complete
// frame in it means a confused or hostile peer.
const MaxBuffer = 65536

// Reader accumulates bytes for one connection and exposes them to a
// decoding loop via Bytes/Advance. It is not safe for concurrent use — the
// specification requires it be owned exclusively by one session's read
// path.
type Reader struct {
	buf []byte
}

// Feed appends newly-read bytes to the buffer. A zero-length chunk is a
// no-op. Returns ingesterr.ErrBufferOverflow if the buffer would exceed
// MaxBuffer; the caller must close the connection on that error without
// attempting any resync.
func (r *Reader) Feed(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	if len(r.buf)+len(chunk) > MaxBuffer {
		return ingesterr.ErrBufferOverflow
	}
	r.buf = append(r.buf, chunk...)
	return nil
}

// Bytes returns the unconsumed portion of the buffer. The decoder reads
// from this slice but must call Advance to release consumed bytes — Bytes
// never copies the tail itself.
func (r *Reader) Bytes() []byte { return r.buf }

// Advance releases n consumed bytes from the front of the buffer.
func (r *Reader) Advance(n int) {
	if n <= 0 {
		return
	}
	if n >= len(r.buf) {
		r.buf = r.buf[:0]
		return
	}
	r.buf = r.buf[n:]
}

// Len reports the number of unconsumed bytes currently buffered.
func (r *Reader) Len() int { return len(r.buf) }
