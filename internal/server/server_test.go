package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/leandrodaf/notebridge/internal/eventqueue"
	"github.com/leandrodaf/notebridge/internal/logger"
	"github.com/leandrodaf/notebridge/sdk/contracts"
	"github.com/leandrodaf/notebridge/sdk/note"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	conn net.Conn
	rw   io.ReadWriter
}

func dial(t *testing.T, addr net.Addr) *client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, br, _, err := ws.Dial(ctx, "ws://"+addr.String())
	require.NoError(t, err)
	return newClient(conn, br)
}

func newClient(conn net.Conn, br *bufio.Reader) *client {
	c := &client{conn: conn, rw: conn}
	if br != nil {
		c.rw = struct {
			io.Reader
			io.Writer
		}{br, conn}
	}
	return c
}

func (c *client) frame(t *testing.T) string {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	b, err := wsutil.ReadServerText(c.rw)
	require.NoError(t, err)
	return string(b)
}

func (c *client) note(t *testing.T) note.Note {
	t.Helper()
	n, err := note.Decode([]byte(c.frame(t)))
	require.NoError(t, err)
	return n
}

func (c *client) close() {
	_ = c.conn.Close()
}

type harness struct {
	srv    *Server
	queue  *eventqueue.Queue
	cancel context.CancelFunc
	done   chan error
}

func start(t *testing.T, opts Options) *harness {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return startOn(t, ln, opts)
}

func startOn(t *testing.T, ln net.Listener, opts Options) *harness {
	t.Helper()
	q := eventqueue.New(8)
	srv := NewServer(ln, q, logger.NewNopLogger(), opts)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{srv: srv, queue: q, cancel: cancel, done: make(chan error, 1)}
	go func() {
		h.done <- srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		q.Close()
	})
	return h
}

func (h *harness) send(t *testing.T, events ...contracts.RawEvent) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.queue.Send(ctx, contracts.EventBatch{Events: events}))
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
		return nil
	}
}

func TestFramesInBatchOrder(t *testing.T) {
	h := start(t, Options{SendInterval: time.Millisecond})
	c := dial(t, h.srv.Addr())
	defer c.close()

	h.send(t,
		contracts.RawEvent{Status: 144, Data1: 60, Timestamp: 1000},
		contracts.RawEvent{Status: 128, Data1: 61, Timestamp: 1001},
	)

	assert.Equal(t, `{"octave":5,"key":"C","pressed":true,"timestamp":1000}`, c.frame(t))
	assert.Equal(t, note.Note{Octave: 5, Key: note.Cs, Pressed: false, Timestamp: 1001}, c.note(t))

	require.Eventually(t, func() bool { return h.srv.Stats().NotesDelivered == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), h.srv.Stats().Accepted)
	assert.Equal(t, uint64(1), h.srv.Stats().BatchesDelivered)
}

func TestHandshakeFailureKeepsAccepting(t *testing.T) {
	h := start(t, Options{HandshakeTimeout: 100 * time.Millisecond})

	raw, err := net.Dial("tcp", h.srv.Addr().String())
	require.NoError(t, err)
	_, err = raw.Write([]byte("GET / HTTP/1.1\r\nHost: localhost\r\n\r\n"))
	require.NoError(t, err)

	silent, err := net.Dial("tcp", h.srv.Addr().String())
	require.NoError(t, err)
	defer silent.Close()

	c := dial(t, h.srv.Addr())
	defer c.close()
	raw.Close()

	h.send(t, contracts.RawEvent{Status: 144, Data1: 64, Timestamp: 7})
	assert.Equal(t, note.Note{Octave: 5, Key: note.E, Pressed: true, Timestamp: 7}, c.note(t))
	assert.Equal(t, uint64(2), h.srv.Stats().HandshakeFailed)
}

func TestServesOneConnectionAtATime(t *testing.T) {
	h := start(t, Options{})
	first := dial(t, h.srv.Addr())

	h.send(t, contracts.RawEvent{Status: 144, Data1: 60, Timestamp: 1})
	assert.Equal(t, uint32(1), first.note(t).Timestamp)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, _, _, err := ws.Dial(ctx, "ws://"+h.srv.Addr().String())
	assert.Error(t, err, "a second client is not upgraded while the first is served")
	assert.Equal(t, uint64(1), h.srv.Stats().Accepted)
	first.close()
}

// dropClient closes c and feeds batches of size notes until the server drops the connection.
// Filler timestamps start at 100.
func (h *harness) dropClient(t *testing.T, c *client, size int) {
	t.Helper()
	c.close()
	filler := uint32(100)
	require.Eventually(t, func() bool {
		if h.srv.Stats().Dropped > 0 {
			return true
		}
		if h.queue.Len() == 0 {
			events := make([]contracts.RawEvent, size)
			for i := range events {
				events[i] = contracts.RawEvent{Status: 144, Data1: 60, Timestamp: filler}
			}
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			if h.queue.Send(ctx, contracts.EventBatch{Events: events}) == nil {
				filler++
			}
			cancel()
		}
		return false
	}, 5*time.Second, 2*time.Millisecond)
}

func TestDroppedClientOnlyLosesConnection(t *testing.T) {
	h := start(t, Options{SendInterval: time.Millisecond})
	first := dial(t, h.srv.Addr())

	h.send(t, contracts.RawEvent{Status: 144, Data1: 60, Timestamp: 1})
	assert.Equal(t, uint32(1), first.note(t).Timestamp)
	h.dropClient(t, first, 500)

	h.send(t, contracts.RawEvent{Status: 128, Data1: 72, Timestamp: 9999})

	second := dial(t, h.srv.Addr())
	defer second.close()
	for {
		n := second.note(t)
		if n.Timestamp == 9999 {
			assert.Equal(t, note.Note{Octave: 6, Key: note.C, Pressed: false, Timestamp: 9999}, n)
			break
		}
		assert.GreaterOrEqual(t, n.Timestamp, uint32(100), "only batches queued after the drop are delivered")
	}
	assert.Equal(t, uint64(2), h.srv.Stats().Accepted)
	assert.Equal(t, uint64(1), h.srv.Stats().Dropped)
}

func TestReconnectResumesWithNextBatch(t *testing.T) {
	h := start(t, Options{})
	first := dial(t, h.srv.Addr())
	h.send(t, contracts.RawEvent{Status: 144, Data1: 60, Timestamp: 1})
	h.send(t, contracts.RawEvent{Status: 144, Data1: 61, Timestamp: 2})
	assert.Equal(t, uint32(1), first.note(t).Timestamp)
	assert.Equal(t, uint32(2), first.note(t).Timestamp)
	h.dropClient(t, first, 1)

	h.send(t, contracts.RawEvent{Status: 144, Data1: 62, Timestamp: 3})

	second := dial(t, h.srv.Addr())
	defer second.close()
	for {
		n := second.note(t)
		require.NotContains(t, []uint32{1, 2}, n.Timestamp, "consumed batches are not replayed")
		if n.Timestamp == 3 {
			assert.Equal(t, note.Note{Octave: 5, Key: note.D, Pressed: true, Timestamp: 3}, n)
			break
		}
	}
}

func TestDecodingFaultIsFatal(t *testing.T) {
	h := start(t, Options{})
	c := dial(t, h.srv.Addr())
	defer c.close()

	h.send(t, contracts.RawEvent{Status: 144, Data1: 200})
	assert.ErrorIs(t, h.wait(t), note.ErrDecodingFault)
}

func TestClosedQueueIsFatal(t *testing.T) {
	h := start(t, Options{})
	c := dial(t, h.srv.Addr())
	defer c.close()

	require.Eventually(t, func() bool { return h.srv.Stats().Accepted == 1 }, time.Second, time.Millisecond)
	h.queue.Close()
	assert.ErrorIs(t, h.wait(t), eventqueue.ErrChannelClosed)
}

func TestCancelStopsServe(t *testing.T) {
	h := start(t, Options{})
	c := dial(t, h.srv.Addr())
	defer c.close()

	h.cancel()
	assert.NoError(t, h.wait(t))
}

func TestBindFailureIsStartupFault(t *testing.T) {
	h := start(t, Options{})
	_, err := Listen(h.srv.Addr().String(), eventqueue.New(1), logger.NewNopLogger(), Options{})
	assert.ErrorIs(t, err, contracts.ErrStartupFault)
}

type failingWriter struct {
	left int
	n    int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n >= w.left {
		return 0, errors.New("broken pipe")
	}
	w.n++
	return len(p), nil
}

func TestWriteFailureMidBatchIsDeliveryFault(t *testing.T) {
	srv := NewServer(nil, eventqueue.New(1), logger.NewNopLogger(), Options{})
	batch := contracts.EventBatch{Events: []contracts.RawEvent{
		{Status: 144, Data1: 60, Timestamp: 1},
		{Status: 144, Data1: 61, Timestamp: 2},
		{Status: 144, Data1: 62, Timestamp: 3},
	}}

	err := srv.deliver(&failingWriter{left: 2}, batch)
	assert.ErrorIs(t, err, contracts.ErrDeliveryFault)
	assert.Equal(t, uint64(2), srv.Stats().NotesDelivered)
}

func TestDisconnectWhileWaitingKeepsNextBatch(t *testing.T) {
	h := start(t, Options{})
	first := dial(t, h.srv.Addr())
	h.send(t, contracts.RawEvent{Status: 144, Data1: 60, Timestamp: 1})
	assert.Equal(t, uint32(1), first.note(t).Timestamp)

	first.close()
	require.Eventually(t, func() bool { return h.srv.Stats().Dropped == 1 }, 2*time.Second, 2*time.Millisecond)
	assert.Equal(t, uint64(1), h.srv.Stats().NotesDelivered)

	h.send(t, contracts.RawEvent{Status: 144, Data1: 70, Timestamp: 10})

	second := dial(t, h.srv.Addr())
	defer second.close()
	assert.Equal(t, note.Note{Octave: 5, Key: note.As, Pressed: true, Timestamp: 10}, second.note(t))
}

// flakyListener fails the first Accept calls before handing out real connections.
type flakyListener struct {
	net.Listener
	failures int
}

func (l *flakyListener) Accept() (net.Conn, error) {
	if l.failures > 0 {
		l.failures--
		return nil, &net.OpError{Op: "accept", Net: "tcp", Err: errors.New("too many open files")}
	}
	return l.Listener.Accept()
}

func TestAcceptFailureKeepsAccepting(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	h := startOn(t, &flakyListener{Listener: ln, failures: 2}, Options{})

	c := dial(t, h.srv.Addr())
	defer c.close()

	h.send(t, contracts.RawEvent{Status: 144, Data1: 67, Timestamp: 5})
	assert.Equal(t, note.Note{Octave: 5, Key: note.G, Pressed: true, Timestamp: 5}, c.note(t))
	assert.Equal(t, uint64(2), h.srv.Stats().AcceptFailed)
	assert.Equal(t, uint64(1), h.srv.Stats().Accepted)
}

func TestPersistentAcceptFailureBacksOff(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	h := startOn(t, &flakyListener{Listener: ln, failures: 1 << 30}, Options{})

	time.Sleep(5 * acceptRetryDelay / 2)
	assert.LessOrEqual(t, h.srv.Stats().AcceptFailed, uint64(4))

	h.cancel()
	assert.NoError(t, h.wait(t))
}
