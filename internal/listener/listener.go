// Package listener polls every open MIDI input on a fixed interval and forwards what it reads
// as one batch per device.
//
// Input latency is bounded by one poll interval plus the time of a sweep, as long as the
// downstream queue has room. A full queue blocks the sweep, which slows polling instead of
// dropping events.
package listener

import (
	"context"
	"fmt"
	"time"

	"github.com/leandrodaf/notebridge/sdk/contracts"
)

const (
	// DefaultPollInterval is the pause between two sweeps over the open devices.
	DefaultPollInterval = 10 * time.Millisecond
	// DefaultReadBufferSize is the number of events read from a device per sweep.
	DefaultReadBufferSize = 1024
)

// BatchSender is the producing end of the event queue.
type BatchSender interface {
	Send(ctx context.Context, batch contracts.EventBatch) error
}

// Options configure a Listener.
type Options struct {
	PollInterval   time.Duration
	ReadBufferSize int
	Filter         *contracts.MIDIEventFilter
}

// Listener owns the open device streams and the polling loop.
type Listener struct {
	log     contracts.Logger
	driver  contracts.Driver
	out     BatchSender
	opts    Options
	streams []contracts.InputStream
}

// New creates a listener reading from driver and sending to out.
func New(driver contracts.Driver, out BatchSender, log contracts.Logger, opts Options) *Listener {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = DefaultReadBufferSize
	}
	return &Listener{
		log:    log,
		driver: driver,
		out:    out,
		opts:   opts,
	}
}

// Open enumerates input devices and opens a stream on each. Devices that fail to open are
// skipped; a failed enumeration is a startup fault.
func (l *Listener) Open() error {
	devices, err := l.driver.Devices()
	if err != nil {
		return fmt.Errorf("%w: enumerate MIDI devices: %v", contracts.ErrStartupFault, err)
	}
	for _, device := range devices {
		stream, err := l.driver.OpenInput(device, l.opts.ReadBufferSize)
		if err != nil {
			l.log.Warn("Skipping MIDI device",
				l.log.Field().Int("deviceID", device.ID),
				l.log.Field().String("deviceName", device.Name),
				l.log.Field().Error("error", fmt.Errorf("%w: %v", contracts.ErrDeviceUnavailable, err)))
			continue
		}
		l.log.Debug("MIDI device opened",
			l.log.Field().Int("deviceID", device.ID),
			l.log.Field().String("deviceName", device.Name))
		l.streams = append(l.streams, stream)
	}
	if len(l.streams) == 0 {
		l.log.Warn("No MIDI input device could be opened")
	}
	l.log.Info("MIDI listener started",
		l.log.Field().Int("devices", len(devices)),
		l.log.Field().Int("opened", len(l.streams)))
	return nil
}

// Devices returns the devices with an open stream.
func (l *Listener) Devices() []contracts.DeviceInfo {
	infos := make([]contracts.DeviceInfo, len(l.streams))
	for i, s := range l.streams {
		infos[i] = s.Device()
	}
	return infos
}

// Run sweeps all open streams, then sleeps the poll interval, until ctx is done or the queue
// is closed. Only a failed send ends the loop with an error.
func (l *Listener) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		if err := l.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		timer.Reset(l.opts.PollInterval)
	}
}

// Poll performs one sweep over every open stream.
func (l *Listener) Poll(ctx context.Context) error {
	for _, stream := range l.streams {
		device := stream.Device()
		events, err := stream.Read(l.opts.ReadBufferSize)
		if err != nil {
			l.log.Debug("Skipping MIDI device this cycle",
				l.log.Field().Int("deviceID", device.ID),
				l.log.Field().Error("error", fmt.Errorf("%w: %v", contracts.ErrReadFault, err)))
			continue
		}
		events = l.filter(events)
		if len(events) == 0 {
			continue
		}
		batch := contracts.EventBatch{DeviceID: device.ID, Device: device, Events: events}
		if err := l.out.Send(ctx, batch); err != nil {
			return fmt.Errorf("send batch from device %d: %w", device.ID, err)
		}
	}
	return nil
}

func (l *Listener) filter(events []contracts.RawEvent) []contracts.RawEvent {
	if l.opts.Filter == nil {
		return events
	}
	kept := events[:0]
	for _, ev := range events {
		if l.opts.Filter.Allows(ev.Command()) {
			kept = append(kept, ev)
		}
	}
	return kept
}

// Close closes every open stream.
func (l *Listener) Close() error {
	var firstErr error
	for _, s := range l.streams {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.streams = nil
	return firstErr
}
