// Package bridge wires the MIDI device listener to the websocket server.
package bridge

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/leandrodaf/notebridge/internal/eventqueue"
	"github.com/leandrodaf/notebridge/internal/listener"
	"github.com/leandrodaf/notebridge/internal/server"
	"github.com/leandrodaf/notebridge/sdk/contracts"
	"golang.org/x/sync/errgroup"
)

// Bridge streams notes from every local MIDI input to one websocket client at a time.
// A Bridge runs once.
type Bridge struct {
	options contracts.BridgeOptions
	log     contracts.Logger
	driver  contracts.Driver
	queue   *eventqueue.Queue
	ready   chan struct{}

	mu       sync.Mutex
	listener *listener.Listener
	server   *server.Server
}

// NewBridge creates a bridge with the specified options.
// It applies default options and initializes the MIDI driver.
//
// opts ...contracts.Option: A variadic list of option functions to customize the configuration.
//
// Returns:
//   - *Bridge: the bridge, ready to Run.
//   - error: a startup fault if the device layer could not be acquired.
func NewBridge(opts ...contracts.Option) (*Bridge, error) {
	options := applyDefaultOptions(opts...)

	driver, err := NewDriver(&options)
	if err != nil {
		return nil, fmt.Errorf("%w: MIDI driver: %v", contracts.ErrStartupFault, err)
	}

	return &Bridge{
		options: options,
		log:     options.Logger,
		driver:  driver,
		queue:   eventqueue.New(options.ChannelCapacity),
		ready:   make(chan struct{}),
	}, nil
}

// Run opens every MIDI input, binds the websocket server and then runs the device listener and
// the server concurrently. It blocks until ctx is done or either of them fails. A failure of
// one stops the other and is returned; callers are expected to treat it as fatal.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.driver.Close()

	l := listener.New(b.driver, b.queue, b.log, listener.Options{
		PollInterval:   b.options.PollInterval,
		ReadBufferSize: b.options.ReadBufferSize,
		Filter:         b.options.MIDIEventFilter,
	})
	if err := l.Open(); err != nil {
		return err
	}
	defer l.Close()

	srv, err := server.Listen(b.options.Address, b.queue, b.log, server.Options{
		SendInterval:     b.options.SendInterval,
		HandshakeTimeout: b.options.HandshakeTimeout,
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.listener = l
	b.server = srv
	b.mu.Unlock()
	close(b.ready)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer b.queue.Close()
		defer cancel()
		if err := l.Run(groupCtx); err != nil {
			return fmt.Errorf("device listener: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		defer b.queue.Close()
		defer cancel()
		if err := srv.Serve(groupCtx); err != nil {
			return fmt.Errorf("connection server: %w", err)
		}
		return nil
	})

	err = group.Wait()
	if err != nil {
		return fmt.Errorf("note bridge failed: %w", err)
	}
	b.log.Info("Note bridge stopped")
	return nil
}

// Ready is closed once devices are open and the server socket is bound.
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

// Addr returns the bound server address, or nil before Ready.
func (b *Bridge) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.server == nil {
		return nil
	}
	return b.server.Addr()
}

// Devices returns the MIDI inputs being polled.
func (b *Bridge) Devices() []contracts.DeviceInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil
	}
	return b.listener.Devices()
}

// Stats returns the server counters.
func (b *Bridge) Stats() server.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.server == nil {
		return server.Stats{}
	}
	return b.server.Stats()
}
