// Package device defines the hardware-facing pieces of AirNode: the serial frame reader
// for the air-quality module, the one-wire temperature probe and the radio mode pins.
package device

import "time"

// Device defines an abstract interface for line-oriented communication devices (e.g. LoRa).
// Implementations provide ReadLine/WriteLine operations with optional timeout.
type Device interface {
	// ReadLine reads a single line terminated by '\n'.
	// If timeout > 0, it must return after timeout even if no data available.
	ReadLine(timeout time.Duration) (string, error)

	// WriteLine writes s followed by '\n' to the device.
	WriteLine(s string) error

	// Close closes the device and releases underlying resources.
	Close() error
}
