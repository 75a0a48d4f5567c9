//go:build !portmidi || !cgo
// +build !portmidi !cgo

package midiportmidi

import (
	"fmt"

	"github.com/leandrodaf/notebridge/sdk/contracts"
)

// Enabled reports whether PortMidi support is compiled in.
const Enabled = false

// NewDriver reports that PortMidi support was not compiled in.
func NewDriver(options *contracts.BridgeOptions) (contracts.Driver, error) {
	return nil, fmt.Errorf("portmidi support requires the portmidi build tag and cgo")
}
