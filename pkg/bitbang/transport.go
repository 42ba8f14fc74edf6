// Package bitbang drives a JTAG Test Access Port one clock edge at a time
// through a minimal pin-level transport, and executes batches of debug
// commands against it.
package bitbang

import "errors"

// Transport is the electrical primitive a bit-banging backend must supply:
// set the three output lines and latch, or sample TDO. Reset drives the
// TRST/SRST lines. Implementations are not required to be safe for
// concurrent use; the driver serializes all access.
type Transport interface {
	// Write sets TCK, TMS and TDI to the given levels.
	Write(tck, tms, tdi bool) error
	// Read samples the current level of TDO.
	Read() (bool, error)
	// Reset asserts or deasserts the test-reset and system-reset lines.
	Reset(trst, srst bool) error
}

// Blinker is optionally implemented by transports with an activity
// indicator. The executor toggles it around each queue drain; it has no
// effect on protocol behavior and its errors are ignored.
type Blinker interface {
	Blink(on bool) error
}

// ErrContract marks programming errors: a broken caller contract such as an
// unstable end state, an invalid path edge, or an unknown queue command.
// These are not recoverable runtime conditions; top-level callers normally
// treat them as fatal.
var ErrContract = errors.New("bitbang: contract violation")

// ErrQueueFailed is the aggregate result of a drain in which at least one
// scan post-check reported a failure. All commands still ran.
var ErrQueueFailed = errors.New("bitbang: queue failed")
