//go:build !windows
// +build !windows

package midiwindows

import (
	"fmt"

	"github.com/leandrodaf/notebridge/sdk/contracts"
)

// NewDriver reports that winmm is unavailable on this platform.
func NewDriver(options *contracts.BridgeOptions) (contracts.Driver, error) {
	return nil, fmt.Errorf("winmm MIDI is not available on this platform")
}
