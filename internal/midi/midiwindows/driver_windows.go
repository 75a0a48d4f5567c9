//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/leandrodaf/notebridge/internal/midi/midibuf"
	"github.com/leandrodaf/notebridge/sdk/contracts"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type HMIDIIN windows.Handle

// Constants for callback flags
const (
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // MIDI data received
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Long MIDI error
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

// Struct representing MIDI device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// Load the winmm.dll library and required functions
var (
	winmm                = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen       = winmm.NewProc("midiInOpen")
	procMidiInStart      = winmm.NewProc("midiInStart")
	procMidiInStop       = winmm.NewProc("midiInStop")
	procMidiInClose      = winmm.NewProc("midiInClose")
)

// Windows allows a limited number of callbacks per process, so every stream shares one and is
// looked up by the instance value passed to midiInOpen.
var (
	callbackOnce sync.Once
	callback     uintptr
	streams      sync.Map // uintptr -> *inputStream
	streamsMu    sync.Mutex
	nextInstance uintptr
)

// ErrInvalidMIDIDevice is returned when opening a device index that winmm does not know.
var ErrInvalidMIDIDevice = errors.New("invalid MIDI device")

// Driver reads MIDI input through winmm.
type Driver struct {
	logger contracts.Logger
}

// NewDriver creates a winmm driver.
func NewDriver(options *contracts.BridgeOptions) (contracts.Driver, error) {
	callbackOnce.Do(func() {
		callback = windows.NewCallback(midiInCallback)
	})
	options.Logger.Info("MIDI driver created for Windows")
	return &Driver{logger: options.Logger}, nil
}

// Devices lists the winmm input devices; devices whose capabilities cannot be read are skipped.
func (d *Driver) Devices() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	numDevices := uint32(r0)

	devices := make([]contracts.DeviceInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			d.logger.Warn(fmt.Sprintf("Failed to get information for MIDI device %d", i))
			continue
		}
		devices = append(devices, contracts.DeviceInfo{
			ID:        int(i),
			Name:      windows.UTF16ToString(caps.szPname[:]),
			Interface: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return devices, nil
}

// OpenInput opens and starts the device.
func (d *Driver) OpenInput(device contracts.DeviceInfo, bufferSize int) (contracts.InputStream, error) {
	if device.ID < 0 {
		return nil, ErrInvalidMIDIDevice
	}
	s := &inputStream{
		logger: d.logger,
		device: device,
		buf:    midibuf.New(bufferSize),
	}

	streamsMu.Lock()
	nextInstance++
	s.instance = nextInstance
	streamsMu.Unlock()
	streams.Store(s.instance, s)

	r1, _, err := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&s.handle)),
		uintptr(device.ID),
		callback,
		s.instance,
		uintptr(CALLBACK_FUNCTION|MIDI_IO_STATUS),
	)
	if r1 != 0 {
		streams.Delete(s.instance)
		return nil, fmt.Errorf("failed to open MIDI device %d: %v", device.ID, err)
	}

	r1, _, err = procMidiInStart.Call(uintptr(s.handle))
	if r1 != 0 {
		procMidiInClose.Call(uintptr(s.handle))
		streams.Delete(s.instance)
		return nil, fmt.Errorf("failed to start MIDI capture on device %d: %v", device.ID, err)
	}
	return s, nil
}

// Close is a no-op; handles are released by their streams.
func (d *Driver) Close() error {
	return nil
}

type inputStream struct {
	logger   contracts.Logger
	device   contracts.DeviceInfo
	buf      *midibuf.Buffer
	instance uintptr
	mu       sync.Mutex
	handle   HMIDIIN
}

// midiInCallback processes incoming MIDI messages. dwParam2 carries the milliseconds elapsed
// since midiInStart.
func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	v, ok := streams.Load(dwInstance)
	if !ok {
		return 0
	}
	s := v.(*inputStream)

	switch wMsg {
	case MIM_OPEN:
		s.logger.Debug("MIDI device opened", s.logger.Field().Int("deviceID", s.device.ID))
	case MIM_CLOSE:
		s.logger.Debug("MIDI device closed", s.logger.Field().Int("deviceID", s.device.ID))
	case MIM_DATA, MIM_MOREDATA:
		packed := []byte{
			byte(dwParam1 & 0xFF),
			byte((dwParam1 >> 8) & 0xFF),
			byte((dwParam1 >> 16) & 0xFF),
		}
		// Short messages are padded to three bytes.
		if n := midibuf.MessageLen(packed[0]); n > 0 {
			packed = packed[:n]
		}
		s.buf.PushBytes(s.device.ID, packed, uint32(dwParam2))
	case MIM_ERROR, MIM_LONGERROR:
		s.logger.Warn(fmt.Sprintf("MIDI error: msg=0x%X", wMsg), s.logger.Field().Int("deviceID", s.device.ID))
	default:
		s.logger.Debug(fmt.Sprintf("Unknown MIDI message: 0x%X", wMsg))
	}
	return 0
}

func (s *inputStream) Device() contracts.DeviceInfo {
	return s.device
}

func (s *inputStream) Read(max int) ([]contracts.RawEvent, error) {
	return s.buf.Read(max)
}

// Close stops capture and releases the handle.
func (s *inputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == 0 {
		return nil
	}
	defer streams.Delete(s.instance)

	r1, _, err := procMidiInStop.Call(uintptr(s.handle))
	if r1 != 0 {
		return fmt.Errorf("failed to stop MIDI capture: %v", err)
	}
	r1, _, err = procMidiInClose.Call(uintptr(s.handle))
	if r1 != 0 {
		return fmt.Errorf("failed to close MIDI device: %v", err)
	}
	s.handle = 0
	return nil
}
