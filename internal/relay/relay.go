// Package relay provides GPIO relay output with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package relay

// Driver drives a relay output.
type Driver interface {
	// Set energizes (true) or de-energizes (false) the relay.
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// DefaultPin is the default relay pin (BCM numbering).
const DefaultPin = 17
