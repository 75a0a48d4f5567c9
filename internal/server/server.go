// Package server accepts websocket clients one at a time and streams translated notes to them.
//
// Connections are served serially: while one client holds the event queue no other
// connection is upgraded, and a second client will wait in the listen backlog. Every batch
// is delivered to exactly one client; there is no fan-out and no replay.
//
// Client input is read and discarded only to notice a disconnect while the handler waits for
// the next batch. A batch already taken from the queue when the peer goes away is written to
// the dead socket and lost.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/leandrodaf/notebridge/internal/eventqueue"
	"github.com/leandrodaf/notebridge/sdk/contracts"
	"github.com/leandrodaf/notebridge/sdk/note"
	"go.uber.org/atomic"
)

const (
	// DefaultAddress is the loopback address the bridge listens on.
	DefaultAddress = "127.0.0.1:9001"
	// DefaultSendInterval is the pause after each delivered batch.
	DefaultSendInterval = 20 * time.Millisecond
	// DefaultHandshakeTimeout bounds the websocket upgrade of a new connection.
	DefaultHandshakeTimeout = 5 * time.Second
)

// acceptRetryDelay is the pause after a failed Accept before trying again.
const acceptRetryDelay = 50 * time.Millisecond

// Options configure a Server.
type Options struct {
	SendInterval     time.Duration // Pause after each delivered batch.
	HandshakeTimeout time.Duration // Deadline for the websocket upgrade; zero disables it.
}

// Stats are cumulative counters of a Server.
type Stats struct {
	Accepted         uint64 // Connections that completed the handshake.
	AcceptFailed     uint64
	HandshakeFailed  uint64
	Dropped          uint64 // Connections lost to a write failure or a peer disconnect.
	NotesDelivered   uint64
	BatchesDelivered uint64
}

// Server is the websocket endpoint draining an event queue.
type Server struct {
	log   contracts.Logger
	queue *eventqueue.Queue
	ln    net.Listener
	opts  Options

	accepted        atomic.Uint64
	acceptFailed    atomic.Uint64
	handshakeFailed atomic.Uint64
	dropped         atomic.Uint64
	notes           atomic.Uint64
	batches         atomic.Uint64
}

// Listen binds the listening socket. A bind failure is a startup fault.
func Listen(addr string, queue *eventqueue.Queue, log contracts.Logger, opts Options) (*Server, error) {
	if addr == "" {
		addr = DefaultAddress
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: bind %s: %v", contracts.ErrStartupFault, addr, err)
	}
	return NewServer(ln, queue, log, opts), nil
}

// NewServer serves connections accepted from an already bound listener. The server takes
// ownership of ln.
func NewServer(ln net.Listener, queue *eventqueue.Queue, log contracts.Logger, opts Options) *Server {
	if opts.SendInterval < 0 {
		opts.SendInterval = 0
	}
	return &Server{
		log:   log,
		queue: queue,
		ln:    ln,
		opts:  opts,
	}
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Close closes the listening socket; Serve returns once the current connection ends.
func (s *Server) Close() error {
	return s.ln.Close()
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() Stats {
	return Stats{
		Accepted:         s.accepted.Load(),
		AcceptFailed:     s.acceptFailed.Load(),
		HandshakeFailed:  s.handshakeFailed.Load(),
		Dropped:          s.dropped.Load(),
		NotesDelivered:   s.notes.Load(),
		BatchesDelivered: s.batches.Load(),
	}
}

// Serve accepts and serves connections until ctx is done or the listener is closed.
// Accept, handshake and write failures are logged and absorbed. Any other error is fatal
// and returned: a closed event queue, or a batch that cannot be translated or encoded.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = s.ln.Close()
	})
	defer stop()
	defer s.ln.Close()

	s.log.Info("Websocket server started", s.log.Field().String("addr", s.Addr().String()))
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.acceptFailed.Inc()
			s.log.Warn("Stream error", s.log.Field().Error("error", fmt.Errorf("%w: %v", contracts.ErrAcceptFault, err)))
			retry := time.NewTimer(acceptRetryDelay)
			select {
			case <-ctx.Done():
				retry.Stop()
				return nil
			case <-retry.C:
			}
			continue
		}
		if err := s.handle(ctx, conn); err != nil {
			return err
		}
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	if err := s.handshake(conn); err != nil {
		s.handshakeFailed.Inc()
		s.log.Warn("Websocket handshake failed",
			s.log.Field().String("remote", remote),
			s.log.Field().Error("error", fmt.Errorf("%w: %v", contracts.ErrHandshakeFault, err)))
		return nil
	}
	s.accepted.Inc()
	s.log.Info("Websocket client connected", s.log.Field().String("remote", remote))

	connCtx, cancel := context.WithCancelCause(ctx)
	watched := watchPeer(conn, cancel)
	defer func() {
		_ = conn.Close()
		<-watched
		cancel(nil)
	}()

	err := s.stream(connCtx, conn)
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		err = context.Cause(connCtx)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, contracts.ErrDeliveryFault):
		s.dropped.Inc()
		s.log.Info("Websocket client disconnected",
			s.log.Field().String("remote", remote),
			s.log.Field().Error("error", err))
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		return err
	}
}

// watchPeer reads and discards client input until the connection fails, then cancels the
// connection context with a delivery fault. The returned channel is closed when it stops.
func watchPeer(conn net.Conn, cancel context.CancelCauseFunc) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := io.Copy(io.Discard, conn)
		if err == nil {
			err = io.EOF
		}
		cancel(fmt.Errorf("%w: peer closed: %v", contracts.ErrDeliveryFault, err))
	}()
	return done
}

func (s *Server) handshake(conn net.Conn) error {
	if s.opts.HandshakeTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.opts.HandshakeTimeout)); err != nil {
			return err
		}
		defer conn.SetDeadline(time.Time{})
	}
	_, err := ws.Upgrade(conn)
	return err
}

// stream owns the receiving end of the queue for the lifetime of the connection.
func (s *Server) stream(ctx context.Context, w io.Writer) error {
	rx, err := s.queue.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire event channel: %w", err)
	}
	defer rx.Release()

	pause := time.NewTimer(0)
	defer pause.Stop()
	<-pause.C

	for {
		batch, err := rx.Receive(ctx)
		if err != nil {
			return fmt.Errorf("receive batch: %w", err)
		}
		if err := s.deliver(w, batch); err != nil {
			return err
		}
		s.batches.Inc()

		if s.opts.SendInterval == 0 {
			continue
		}
		pause.Reset(s.opts.SendInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pause.C:
		}
	}
}

// deliver writes one text frame per event, in batch order.
func (s *Server) deliver(w io.Writer, batch contracts.EventBatch) error {
	for _, ev := range batch.Events {
		n, err := note.Translate(ev)
		if err != nil {
			return err
		}
		payload, err := note.Encode(n)
		if err != nil {
			return err
		}
		if err := wsutil.WriteServerText(w, payload); err != nil {
			return fmt.Errorf("%w: %v", contracts.ErrDeliveryFault, err)
		}
		s.notes.Inc()
	}
	return nil
}
