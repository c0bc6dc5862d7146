// Package supervisor implements component G: the TCP accept loop and
// per-connection lifecycle. Each accepted connection gets its own
// goroutine and its own framing.Reader/session.Machine, owned exclusively
// by that goroutine; the only state shared across connections is the
// session registry and the sink dispatcher, both already safe for
// concurrent use.
package supervisor

import (
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/404minds/telematics-gateway/internal/codec"
	"github.com/404minds/telematics-gateway/internal/framing"
	"github.com/404minds/telematics-gateway/internal/ingesterr"
	"github.com/404minds/telematics-gateway/internal/normalize"
	"github.com/404minds/telematics-gateway/internal/observability"
	"github.com/404minds/telematics-gateway/internal/registry"
	"github.com/404minds/telematics-gateway/internal/session"
	"github.com/404minds/telematics-gateway/internal/sink"
	"go.uber.org/zap"
)

// Supervisor accepts TCP connections on one listener and runs a read loop
// per connection until the socket closes, faults, or idles out.
type Supervisor struct {
	listener net.Listener
	registry *registry.Registry
	sink     *sink.Dispatcher
	logger   *zap.Logger

	nextID int64
	wg     sync.WaitGroup

	closing atomic.Bool
}

// New binds a TCP listener on addr (host:port or :port). Returns
// ingesterr.BindError wrapped around the net error on failure, per the
// specification's exit-code contract.
func New(addr string, reg *registry.Registry, disp *sink.Dispatcher, logger *zap.Logger) (*Supervisor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ingesterr.BindError(err)
	}
	return &Supervisor{listener: ln, registry: reg, sink: disp, logger: logger}, nil
}

// Addr returns the bound listener's address, useful for tests that bind to
// an ephemeral port.
func (s *Supervisor) Addr() net.Addr { return s.listener.Addr() }

// Serve runs the accept loop until Shutdown is called. It returns once the
// listener is closed.
func (s *Supervisor) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() {
				return nil
			}
			s.logger.Error("accept failed", zap.Error(err))
			continue
		}
		observability.ConnectionsAccepted.Inc()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

// Shutdown stops accepting new connections and waits up to grace for
// in-flight connection handlers to exit. It does not close open
// connections: a handler blocked in a read keeps running until its peer
// disconnects or the idle timeout fires.
func (s *Supervisor) Shutdown(grace time.Duration) {
	s.closing.Store(true)
	_ = s.listener.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
	}
}

func (s *Supervisor) nextSessionID() string {
	id := atomic.AddInt64(&s.nextID, 1)
	return strconv.FormatInt(id, 10)
}

func (s *Supervisor) handle(conn net.Conn) {
	defer conn.Close()

	id := s.nextSessionID()
	remote := conn.RemoteAddr().String()
	log := s.logger.With(zap.String("session_id", id), zap.String("remote_addr", remote))

	now := time.Now()
	sm := session.New(now)
	var reader framing.Reader

	s.registry.Upsert(registry.Snapshot{ID: id, RemoteAddr: remote, ConnectedAt: now})
	observability.ActiveSessions.Inc()
	defer func() {
		s.registry.Remove(id)
		observability.ActiveSessions.Dec()
	}()

	chunk := make([]byte, 4096)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(session.IdleTimeout))

		n, err := conn.Read(chunk)
		if err != nil {
			if err == io.EOF {
				log.Info("connection closed by peer")
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				log.Info("idle timeout", zap.Error(ingesterr.FaultIdleTimeout))
				observability.FaultsByKind.WithLabelValues(string(ingesterr.KindIdleTimeout)).Inc()
				return
			}
			log.Info("socket error", zap.Error(ingesterr.SocketError(err)))
			observability.FaultsByKind.WithLabelValues(string(ingesterr.KindSocketError)).Inc()
			return
		}

		sm.Touch(time.Now())
		if err := reader.Feed(chunk[:n]); err != nil {
			log.Warn("closing connection", zap.Error(err))
			observability.FaultsByKind.WithLabelValues(string(ingesterr.KindBufferOverflow)).Inc()
			return
		}

		if fault := s.drainFrames(conn, &reader, sm, log, id); fault != nil {
			return
		}
	}
}

// drainFrames repeatedly decodes and applies whole frames from reader until
// the decoder reports it needs more bytes or the buffer is empty. It never
// re-processes the same bytes twice.
func (s *Supervisor) drainFrames(conn net.Conn, reader *framing.Reader, sm *session.Machine, log *zap.Logger, id string) error {
	for reader.Len() > 0 {
		start := time.Now()
		result := codec.Decode(reader.Bytes(), sm.Phase())
		observability.ObserveDecodeLatency(start)

		switch result.Kind {
		case codec.KindIncomplete:
			return nil
		case codec.KindFault:
			log.Warn("decode fault, closing connection", zap.Error(result.Fault))
			observability.FaultsByKind.WithLabelValues(faultKind(result.Fault)).Inc()
			return result.Fault
		}

		reader.Advance(result.Consumed)

		outcome := sm.Apply(result)
		if outcome.Fault != nil {
			log.Warn("session fault, closing connection", zap.Error(outcome.Fault))
			observability.FaultsByKind.WithLabelValues(faultKind(outcome.Fault)).Inc()
			return outcome.Fault
		}

		if result.Login != nil {
			observability.LoginsAccepted.Inc()
		}
		if outcome.AVL != nil {
			observability.FramesAccepted.Inc()
			records := normalize.Batch(outcome.AVL)
			observability.RecordsNormalized.Add(float64(len(records)))
			s.sink.Enqueue(sink.Batch{IMEI: sm.IMEI(), Records: records})
		}

		if len(outcome.Ack) > 0 {
			if _, err := conn.Write(outcome.Ack); err != nil {
				log.Warn("ack write failed", zap.Error(ingesterr.SocketError(err)))
				return err
			}
		}

		s.registry.Upsert(registry.Snapshot{
			ID:              id,
			RemoteAddr:      conn.RemoteAddr().String(),
			IMEI:            sm.IMEI(),
			ConnectedAt:     sm.ConnectedAt(),
			PacketsReceived: sm.PacketsReceived(),
		})
	}
	return nil
}

func faultKind(err error) string {
	if f, ok := err.(ingesterr.Fault); ok {
		return string(f.Kind)
	}
	return "unknown"
}
