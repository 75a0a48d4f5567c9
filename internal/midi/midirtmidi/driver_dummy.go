//go:build !linux || !cgo
// +build !linux !cgo

package midirtmidi

import (
	"fmt"

	"github.com/leandrodaf/notebridge/sdk/contracts"
)

// NewDriver reports that rtmidi is unavailable in this build.
func NewDriver(options *contracts.BridgeOptions) (contracts.Driver, error) {
	return nil, fmt.Errorf("rtmidi requires linux with cgo enabled")
}
