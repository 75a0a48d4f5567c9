package bridge

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/notebridge/internal/midi/mididarwin"
	"github.com/leandrodaf/notebridge/internal/midi/midiportmidi"
	"github.com/leandrodaf/notebridge/internal/midi/midirtmidi"
	"github.com/leandrodaf/notebridge/internal/midi/midiwindows"
	"github.com/leandrodaf/notebridge/sdk/contracts"
)

// ErrUnsupportedOS is returned when no MIDI driver exists for the operating system.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// driverInitializers maps OS names to the MIDI driver used there.
var driverInitializers = map[string]func(*contracts.BridgeOptions) (contracts.Driver, error){
	"darwin":  mididarwin.NewDriver,  // CoreMIDI
	"windows": midiwindows.NewDriver, // winmm
	"linux":   midirtmidi.NewDriver,  // ALSA through rtmidi
}

// NewDriver returns the injected driver, PortMidi when built with the portmidi tag, or the
// driver registered for the current OS.
func NewDriver(opts *contracts.BridgeOptions) (contracts.Driver, error) {
	if opts.Driver != nil {
		return opts.Driver, nil
	}
	if midiportmidi.Enabled {
		return midiportmidi.NewDriver(opts)
	}
	if initializer, exists := driverInitializers[runtime.GOOS]; exists {
		return initializer(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
}
