package contracts

import "errors"

// Error kinds shared by the pipeline. Callers wrap them with context and match with errors.Is.
var (
	// ErrStartupFault is fatal: the device layer, device enumeration or socket bind failed.
	ErrStartupFault = errors.New("startup fault")
	// ErrDeviceUnavailable marks a device that could not be opened; it is skipped.
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrReadFault marks a transient read failure; the device is skipped for one cycle.
	ErrReadFault = errors.New("device read fault")
	// ErrAcceptFault marks an accept-level I/O error; the server keeps accepting.
	ErrAcceptFault = errors.New("accept fault")
	// ErrHandshakeFault marks a failed protocol upgrade; the connection attempt is dropped.
	ErrHandshakeFault = errors.New("handshake fault")
	// ErrDeliveryFault marks a failed socket write; the connection is dropped.
	ErrDeliveryFault = errors.New("delivery fault")
)
