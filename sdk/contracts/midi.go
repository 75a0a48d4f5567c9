package contracts

// RawEvent is one decoded short MIDI message read from an input device.
type RawEvent struct {
	DeviceID  int    // Identifier of the device the event was read from.
	Status    byte   // Status byte (command nibble + channel nibble).
	Data1     byte   // First data byte, the note number for note messages (0-127).
	Data2     byte   // Second data byte, the velocity for note messages (0-127).
	Timestamp uint32 // Device clock in milliseconds; only comparable within one device.
}

// Command returns the command nibble of the status byte.
func (e RawEvent) Command() MIDICommand {
	return MIDICommand(e.Status & 0xF0)
}

// EventBatch holds all events read from one device during a single poll cycle, in read order.
type EventBatch struct {
	DeviceID int
	Device   DeviceInfo
	Events   []RawEvent
}

// Driver is the device layer: it enumerates input devices and opens streams on them.
type Driver interface {
	Devices() ([]DeviceInfo, error)                                  // Lists all available input devices.
	OpenInput(device DeviceInfo, bufferSize int) (InputStream, error) // Opens an input stream with a fixed internal buffer.
	Close() error                                                    // Releases the device layer.
}

// InputStream is an open input device.
type InputStream interface {
	Device() DeviceInfo
	// Read returns up to max pending events without blocking. It returns an empty slice
	// when nothing is pending.
	Read(max int) ([]RawEvent, error)
	Close() error
}
