//go:build !darwin
// +build !darwin

package mididarwin

import (
	"fmt"

	"github.com/leandrodaf/notebridge/sdk/contracts"
)

// NewDriver reports that CoreMIDI is unavailable on this platform.
func NewDriver(options *contracts.BridgeOptions) (contracts.Driver, error) {
	return nil, fmt.Errorf("CoreMIDI is not available on this platform")
}
