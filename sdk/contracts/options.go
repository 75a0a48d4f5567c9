package contracts

import "time"

// MIDICommand represents the command nibble of a MIDI status byte.
type MIDICommand byte

const (
	// NoteOn is the MIDI command for a Note On event (0x90).
	NoteOn MIDICommand = 0x90
	// NoteOff is the MIDI command for a Note Off event (0x80).
	NoteOff MIDICommand = 0x80
)

// MIDIEventFilter allows users to specify which MIDI commands to forward.
type MIDIEventFilter struct {
	Commands []MIDICommand // List of MIDI commands to keep.
}

// Allows reports whether the command is kept by the filter. A nil filter keeps everything.
func (f *MIDIEventFilter) Allows(command MIDICommand) bool {
	if f == nil {
		return true
	}
	for _, allowed := range f.Commands {
		if command == allowed {
			return true
		}
	}
	return false
}

// CoreMIDIConfig holds configuration for CoreMIDI.
type CoreMIDIConfig struct {
	ClientName string // Name of the MIDI client.
}

// BridgeOptions defines the configuration options for the note bridge.
type BridgeOptions struct {
	Logger           Logger           // Logger for lifecycle events and faults.
	LogLevel         LogLevel         // Level of logging to use.
	LogFilePath      string           // File path for logging if file logging is enabled.
	Address          string           // Loopback address the websocket server binds to.
	PollInterval     time.Duration    // Pause between two device sweeps.
	SendInterval     time.Duration    // Pause after a batch has been written to the client.
	ChannelCapacity  int              // Number of outstanding batches between listener and server.
	ReadBufferSize   int              // Per-device buffer size, also the max events read per sweep.
	HandshakeTimeout time.Duration    // Deadline for the websocket upgrade.
	MIDIEventFilter  *MIDIEventFilter // Optional filter for MIDI commands to forward.
	Driver           Driver           // Device layer; selected by OS when nil.
	CoreMIDIConfig   *CoreMIDIConfig  // Configuration specific to CoreMIDI.
}

// Option is a function that modifies BridgeOptions.
type Option func(*BridgeOptions)

// WithLogger sets the logger for the bridge.
func WithLogger(l Logger) Option {
	return func(opts *BridgeOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the bridge.
func WithLogLevel(level LogLevel) Option {
	return func(opts *BridgeOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile directs log output to the given file.
func WithLogFile(path string) Option {
	return func(opts *BridgeOptions) {
		opts.LogFilePath = path
	}
}

// WithAddress sets the host:port the websocket server listens on.
func WithAddress(addr string) Option {
	return func(opts *BridgeOptions) {
		opts.Address = addr
	}
}

// WithPollInterval sets the pause between two device sweeps.
// Worst-case input latency is one poll interval plus processing time.
func WithPollInterval(d time.Duration) Option {
	return func(opts *BridgeOptions) {
		opts.PollInterval = d
	}
}

// WithSendInterval sets the pause taken after each batch is written to the client.
func WithSendInterval(d time.Duration) Option {
	return func(opts *BridgeOptions) {
		opts.SendInterval = d
	}
}

// WithChannelCapacity sets how many batches may be queued before the listener blocks.
func WithChannelCapacity(n int) Option {
	return func(opts *BridgeOptions) {
		opts.ChannelCapacity = n
	}
}

// WithReadBufferSize sets the per-device input buffer size.
func WithReadBufferSize(n int) Option {
	return func(opts *BridgeOptions) {
		opts.ReadBufferSize = n
	}
}

// WithHandshakeTimeout bounds the websocket upgrade of an accepted connection.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(opts *BridgeOptions) {
		opts.HandshakeTimeout = d
	}
}

// WithMIDIEventFilter sets the MIDI event filter for the bridge.
func WithMIDIEventFilter(filter MIDIEventFilter) Option {
	return func(opts *BridgeOptions) {
		opts.MIDIEventFilter = &filter
	}
}

// WithDriver replaces the OS-selected device layer.
func WithDriver(d Driver) Option {
	return func(opts *BridgeOptions) {
		opts.Driver = d
	}
}

// WithCoreMIDIConfig sets the CoreMIDI configuration.
func WithCoreMIDIConfig(config CoreMIDIConfig) Option {
	return func(opts *BridgeOptions) {
		opts.CoreMIDIConfig = &config
	}
}
