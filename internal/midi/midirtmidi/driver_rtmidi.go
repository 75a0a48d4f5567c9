//go:build linux && cgo
// +build linux,cgo

// Package midirtmidi reads MIDI input through rtmidi (ALSA on Linux).
package midirtmidi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/notebridge/internal/midi/midibuf"
	"github.com/leandrodaf/notebridge/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// ErrInvalidMIDIDevice is returned when opening a port number rtmidi does not list.
var ErrInvalidMIDIDevice = errors.New("invalid MIDI device")

// Driver wraps an rtmidi driver instance.
type Driver struct {
	logger contracts.Logger
	drv    *rtmididrv.Driver
}

// NewDriver initialises rtmidi.
func NewDriver(options *contracts.BridgeOptions) (contracts.Driver, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	options.Logger.Info("rtmidi driver created")
	return &Driver{logger: options.Logger, drv: drv}, nil
}

func (d *Driver) Devices() ([]contracts.DeviceInfo, error) {
	ins, err := d.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("list MIDI inputs: %w", err)
	}
	devices := make([]contracts.DeviceInfo, len(ins))
	for i, in := range ins {
		devices[i] = contracts.DeviceInfo{ID: in.Number(), Name: in.String(), Interface: "rtmidi"}
	}
	return devices, nil
}

func (d *Driver) OpenInput(device contracts.DeviceInfo, bufferSize int) (contracts.InputStream, error) {
	ins, err := d.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("list MIDI inputs: %w", err)
	}
	var found drivers.In
	for _, in := range ins {
		if in.Number() == device.ID {
			found = in
			break
		}
	}
	if found == nil {
		return nil, ErrInvalidMIDIDevice
	}
	if err := found.Open(); err != nil {
		return nil, fmt.Errorf("open %q: %w", device.Name, err)
	}

	s := &inputStream{device: device, in: found, buf: midibuf.New(bufferSize)}
	stop, err := midi.ListenTo(found, func(msg midi.Message, timestampms int32) {
		s.buf.PushBytes(device.ID, msg, uint32(timestampms))
	}, midi.HandleError(func(listenErr error) {
		d.logger.Warn("MIDI listener error",
			d.logger.Field().String("deviceName", device.Name),
			d.logger.Field().Error("error", listenErr))
	}))
	if err != nil {
		_ = found.Close()
		return nil, fmt.Errorf("listen %q: %w", device.Name, err)
	}
	s.stop = stop
	return s, nil
}

func (d *Driver) Close() error {
	return d.drv.Close()
}

type inputStream struct {
	device contracts.DeviceInfo
	in     drivers.In
	buf    *midibuf.Buffer
	mu     sync.Mutex
	stop   func()
}

func (s *inputStream) Device() contracts.DeviceInfo {
	return s.device
}

func (s *inputStream) Read(max int) ([]contracts.RawEvent, error) {
	return s.buf.Read(max)
}

func (s *inputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	return s.in.Close()
}
