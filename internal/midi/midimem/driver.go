// Package midimem provides virtual MIDI input devices backed by memory.
// Events pushed to a device are read back through the same contracts.Driver interface
// the hardware backends implement.
package midimem

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/notebridge/internal/midi/midibuf"
	"github.com/leandrodaf/notebridge/sdk/contracts"
)

// ErrDriverClosed is returned by a driver after Close.
var ErrDriverClosed = errors.New("midimem: driver closed")

// Driver is an in-memory contracts.Driver.
type Driver struct {
	mu      sync.Mutex
	devices []*Device
	listErr error
	closed  bool
}

// New creates an empty driver.
func New() *Driver {
	return &Driver{}
}

// AddDevice registers a new virtual input device.
func (d *Driver) AddDevice(name string) *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev := &Device{info: contracts.DeviceInfo{ID: len(d.devices), Name: name, Interface: "midimem"}}
	d.devices = append(d.devices, dev)
	return dev
}

// FailEnumeration makes Devices return err.
func (d *Driver) FailEnumeration(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listErr = err
}

func (d *Driver) Devices() ([]contracts.DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDriverClosed
	}
	if d.listErr != nil {
		return nil, d.listErr
	}
	infos := make([]contracts.DeviceInfo, len(d.devices))
	for i, dev := range d.devices {
		infos[i] = dev.info
	}
	return infos, nil
}

func (d *Driver) OpenInput(device contracts.DeviceInfo, bufferSize int) (contracts.InputStream, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDriverClosed
	}
	if device.ID < 0 || device.ID >= len(d.devices) {
		d.mu.Unlock()
		return nil, fmt.Errorf("midimem: unknown device %d", device.ID)
	}
	dev := d.devices[device.ID]
	d.mu.Unlock()
	return dev.open(bufferSize)
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Device is a virtual input device.
type Device struct {
	info contracts.DeviceInfo

	mu      sync.Mutex
	openErr error
	readErr error
	buf     *midibuf.Buffer
}

// Info returns the device description.
func (dev *Device) Info() contracts.DeviceInfo {
	return dev.info
}

// FailOpen makes OpenInput fail for this device.
func (dev *Device) FailOpen(err error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.openErr = err
}

// FailNextRead makes the next Read on the open stream return err.
func (dev *Device) FailNextRead(err error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.readErr = err
}

// Opened reports whether a stream is open on the device.
func (dev *Device) Opened() bool {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.buf != nil
}

// Push delivers events to the open stream, stamping them with the device ID.
// It returns how many were buffered; events pushed while no stream is open are lost.
func (dev *Device) Push(events ...contracts.RawEvent) int {
	dev.mu.Lock()
	buf := dev.buf
	dev.mu.Unlock()
	if buf == nil {
		return 0
	}
	n := 0
	for _, ev := range events {
		ev.DeviceID = dev.info.ID
		if buf.Push(ev) {
			n++
		}
	}
	return n
}

func (dev *Device) open(bufferSize int) (contracts.InputStream, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.openErr != nil {
		return nil, dev.openErr
	}
	if dev.buf != nil {
		return nil, fmt.Errorf("midimem: device %q already open", dev.info.Name)
	}
	dev.buf = midibuf.New(bufferSize)
	return &stream{dev: dev, buf: dev.buf}, nil
}

type stream struct {
	dev *Device
	buf *midibuf.Buffer
}

func (s *stream) Device() contracts.DeviceInfo {
	return s.dev.info
}

func (s *stream) Read(max int) ([]contracts.RawEvent, error) {
	s.dev.mu.Lock()
	err := s.dev.readErr
	s.dev.readErr = nil
	s.dev.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.buf.Read(max)
}

func (s *stream) Close() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.dev.buf == s.buf {
		s.dev.buf = nil
	}
	return nil
}
