//go:build portmidi && cgo
// +build portmidi,cgo

// Package midiportmidi reads MIDI input through PortMidi. It is compiled in with the
// "portmidi" build tag and then takes precedence over the per-OS drivers.
package midiportmidi

import (
	"fmt"

	"github.com/leandrodaf/notebridge/sdk/contracts"
	"github.com/rakyll/portmidi"
)

// Enabled reports whether PortMidi support is compiled in.
const Enabled = true

// Driver is the PortMidi device layer. Only one may exist per process.
type Driver struct {
	logger contracts.Logger
}

// NewDriver initialises PortMidi.
func NewDriver(options *contracts.BridgeOptions) (contracts.Driver, error) {
	if err := portmidi.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portmidi: %w", err)
	}
	options.Logger.Info("PortMidi driver created")
	return &Driver{logger: options.Logger}, nil
}

// Devices lists PortMidi devices that can be opened for input.
func (d *Driver) Devices() ([]contracts.DeviceInfo, error) {
	count := portmidi.CountDevices()
	var devices []contracts.DeviceInfo
	for i := 0; i < count; i++ {
		info := portmidi.Info(portmidi.DeviceID(i))
		if info == nil || !info.IsInputAvailable {
			continue
		}
		devices = append(devices, contracts.DeviceInfo{ID: i, Name: info.Name, Interface: info.Interface})
	}
	return devices, nil
}

// OpenInput opens a PortMidi input stream; PortMidi buffers bufferSize events internally.
func (d *Driver) OpenInput(device contracts.DeviceInfo, bufferSize int) (contracts.InputStream, error) {
	in, err := portmidi.NewInputStream(portmidi.DeviceID(device.ID), int64(bufferSize))
	if err != nil {
		return nil, err
	}
	return &inputStream{device: device, in: in}, nil
}

func (d *Driver) Close() error {
	return portmidi.Terminate()
}

type inputStream struct {
	device contracts.DeviceInfo
	in     *portmidi.Stream
}

func (s *inputStream) Device() contracts.DeviceInfo {
	return s.device
}

// Read polls first so an idle device never blocks.
func (s *inputStream) Read(max int) ([]contracts.RawEvent, error) {
	ok, err := s.in.Poll()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	events, err := s.in.Read(max)
	if err != nil {
		return nil, err
	}
	out := make([]contracts.RawEvent, 0, len(events))
	for _, ev := range events {
		if ev.Status&0x80 == 0 || ev.Status >= 0xF0 {
			continue
		}
		out = append(out, contracts.RawEvent{
			DeviceID:  s.device.ID,
			Status:    byte(ev.Status),
			Data1:     byte(ev.Data1),
			Data2:     byte(ev.Data2),
			Timestamp: uint32(ev.Timestamp),
		})
	}
	return out, nil
}

func (s *inputStream) Close() error {
	return s.in.Close()
}
