//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/notebridge/internal/midi/midibuf"
	"github.com/leandrodaf/notebridge/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for MIDI connection and handling issues.
var (
	ErrInvalidMIDIDevice   = errors.New("invalid MIDI device")
	ErrMIDIConnectionError = errors.New("error connecting to MIDI device")
	ErrCreateInputPort     = errors.New("error creating input port")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// Driver enumerates CoreMIDI sources and opens an input port per source.
type Driver struct {
	logger contracts.Logger
	client coremidi.Client // CoreMIDI client instance shared by every input port.
}

// NewDriver creates the CoreMIDI client.
func NewDriver(options *contracts.BridgeOptions) (contracts.Driver, error) {
	client, err := coremidi.NewClient(options.CoreMIDIConfig.ClientName)
	if err != nil {
		return nil, err
	}
	options.Logger.Info("CoreMIDI client successfully created")
	return &Driver{logger: options.Logger, client: client}, nil
}

// Devices lists every CoreMIDI source. An empty list is not an error.
func (d *Driver) Devices() ([]contracts.DeviceInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	devices := make([]contracts.DeviceInfo, len(sources))
	for i, source := range sources {
		devices[i] = contracts.DeviceInfo{
			ID:        i,
			Name:      source.Name(),
			Interface: source.Entity().Manufacturer(),
		}
	}
	return devices, nil
}

// OpenInput connects a new input port to the source. Packets delivered by CoreMIDI are
// decoded into the stream's buffer until the stream is closed.
func (d *Driver) OpenInput(device contracts.DeviceInfo, bufferSize int) (contracts.InputStream, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error retrieving MIDI sources: %w", err)
	}
	if device.ID < 0 || device.ID >= len(sources) {
		return nil, ErrInvalidMIDIDevice
	}
	source := sources[device.ID]

	s := &inputStream{
		device: device,
		buf:    midibuf.New(bufferSize),
		opened: time.Now(),
	}
	port, err := coremidi.NewInputPort(d.client, "Input Port "+source.Name(), s.handleMIDIMessage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}
	s.portConn, err = port.Connect(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
	}
	return s, nil
}

// Close is a no-op; ports are released by their streams.
func (d *Driver) Close() error {
	return nil
}

type inputStream struct {
	device   contracts.DeviceInfo
	buf      *midibuf.Buffer
	opened   time.Time
	mu       sync.Mutex
	portConn internalPortConnection
}

// handleMIDIMessage runs on a CoreMIDI thread.
func (s *inputStream) handleMIDIMessage(source coremidi.Source, packet coremidi.Packet) {
	ts := uint32(time.Since(s.opened).Milliseconds())
	s.buf.PushBytes(s.device.ID, packet.Data, ts)
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
	if s.portConn != nil {
		s.portConn.Disconnect()
		s.portConn = nil
	}
	return nil
}
