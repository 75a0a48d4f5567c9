package contracts

// DeviceInfo contains information about a MIDI input device.
type DeviceInfo struct {
	ID        int    // Driver-scoped device identifier.
	Name      string // Device name.
	Interface string // Backend or manufacturer the device is exposed through.
}
