package bitbang

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/tap"
)

// ScanDirection selects which way payload bits flow during a shift,
// relative to the host.
type ScanDirection int

const (
	// ScanIn captures TDO into the buffer; TDI is driven low so the
	// output stays deterministic.
	ScanIn ScanDirection = iota
	// ScanOut drives the buffer onto TDI without capturing TDO.
	ScanOut
	// ScanIO drives TDI from the buffer and captures TDO back into it.
	ScanIO
)

// Driver moves a TAP controller by replaying TMS sequences as TCK pulses on
// a Transport. It tracks the session's current and requested end state.
//
// TCK absolutely must be left low between operations: on some targets the
// debug clock is generated on the falling edge while in IDLE, and a
// breakpoint set up just before reset is only latched by that final edge.
// Every operation therefore parks TCK low before returning.
//
// A Driver is single-threaded by contract; concurrent calls are undefined.
type Driver struct {
	tr     Transport
	oracle tap.StateOracle

	cur tap.State
	end tap.State
}

// NewDriver wraps a pin transport. A nil oracle selects the built-in
// standard state table.
func NewDriver(tr Transport, oracle tap.StateOracle) *Driver {
	if oracle == nil {
		oracle = tap.StandardOracle{}
	}
	return &Driver{
		tr:     tr,
		oracle: oracle,
		cur:    tap.StateInvalid,
		end:    tap.StateInvalid,
	}
}

// State returns the current logical TAP state. It is StateInvalid until the
// first reset or state move.
func (d *Driver) State() tap.State { return d.cur }

// EndState returns the most recently requested end state.
func (d *Driver) EndState() tap.State { return d.end }

// SetState forces the logical state without issuing clocks. Used when an
// electrical event (TRST) has moved the TAP behind the driver's back.
func (d *Driver) SetState(s tap.State) { d.cur = s }

// SetEndState records the requested stable end state for the next move.
// A non-stable state is a caller bug, not a runtime condition.
func (d *Driver) SetEndState(s tap.State) error {
	if !d.oracle.IsStable(s) {
		return fmt.Errorf("%w: %s is not a valid end state", ErrContract, s)
	}
	d.end = s
	return nil
}

// stateMove replays the TMS path from the current state to the end state,
// skipping the first skip bits, and parks TCK low.
func (d *Driver) stateMove(skip int) error {
	if d.cur == tap.StateInvalid {
		// Before the first reset the position is unknown; seven
		// TMS-high clocks reach RESET from anywhere.
		if d.end != tap.StateReset {
			return fmt.Errorf("%w: first move must target %s, not %s",
				ErrContract, tap.StateReset, d.end)
		}
		for i := 0; i < 7; i++ {
			if err := d.pulse(true, false); err != nil {
				return err
			}
		}
		if err := d.tr.Write(false, true, false); err != nil {
			return err
		}
		d.cur = tap.StateReset
		return nil
	}

	path, err := d.oracle.TMSPath(d.cur, d.end)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContract, err)
	}

	tms := false
	for i := skip; i < path.Len; i++ {
		tms = (path.Bits>>i)&1 != 0
		if err := d.pulse(tms, false); err != nil {
			return err
		}
	}
	if err := d.tr.Write(false, tms, false); err != nil {
		return err
	}

	d.cur = d.end
	return nil
}

// MoveTo sets the end state and walks there from the current state.
func (d *Driver) MoveTo(end tap.State) error {
	if err := d.SetEndState(end); err != nil {
		return err
	}
	return d.stateMove(0)
}

// RunTest clocks cycles TCK pulses in IDLE with TMS low, then returns to
// the previously requested end state.
func (d *Driver) RunTest(cycles int) error {
	saved := d.end

	// only move when not already in IDLE
	if d.cur != tap.StateIdle {
		if err := d.SetEndState(tap.StateIdle); err != nil {
			return err
		}
		if err := d.stateMove(0); err != nil {
			return err
		}
	}

	for i := 0; i < cycles; i++ {
		if err := d.pulse(false, false); err != nil {
			return err
		}
	}
	if err := d.tr.Write(false, false, false); err != nil {
		return err
	}

	if err := d.SetEndState(saved); err != nil {
		return err
	}
	if d.cur != d.end {
		return d.stateMove(0)
	}
	return nil
}

// StableClocks pulses TCK cycles times while holding the current stable
// state. TMS must be 1 to remain in RESET and 0 for every other stable
// state. The caller guarantees the TAP is in a stable state.
func (d *Driver) StableClocks(cycles int) error {
	tms := d.cur == tap.StateReset
	for i := 0; i < cycles; i++ {
		if err := d.tr.Write(true, tms, false); err != nil {
			return err
		}
		if err := d.tr.Write(false, tms, false); err != nil {
			return err
		}
	}
	return nil
}

// PathMove clocks through an explicit list of adjacent states. A step that
// is reachable by neither TMS edge is a caller bug.
func (d *Driver) PathMove(states []tap.State) error {
	tms := false
	for _, next := range states {
		switch next {
		case d.oracle.NextState(d.cur, false):
			tms = false
		case d.oracle.NextState(d.cur, true):
			tms = true
		default:
			return fmt.Errorf("%w: %s -> %s is not a valid TAP transition",
				ErrContract, d.cur, next)
		}

		if err := d.pulse(tms, false); err != nil {
			return err
		}
		d.cur = next
	}

	if err := d.tr.Write(false, tms, false); err != nil {
		return err
	}
	d.end = d.cur
	return nil
}

// ExecuteTMS clocks numBits raw TMS transitions from the packed buffer,
// LSB of each byte first. Used to drive SWJ sequences over the JTAG pins.
func (d *Driver) ExecuteTMS(bits []byte, numBits int) error {
	glog.V(2).Infof("TMS: %d bits", numBits)

	tms := false
	for i := 0; i < numBits; i++ {
		tms = bits[i/8]>>(i%8)&1 != 0
		if err := d.pulse(tms, false); err != nil {
			return err
		}
	}
	return d.tr.Write(false, tms, false)
}

// Scan shifts numBits through the instruction or data register. The TAP is
// moved into the matching shift state first if necessary. TMS is raised on
// the final bit, so the controller exits to EXIT1 and the remaining path to
// the end state skips the edge the shift loop already clocked.
func (d *Driver) Scan(ir bool, dir ScanDirection, buf []byte, numBits int) error {
	saved := d.end

	shiftState := tap.StateShiftDR
	if ir {
		shiftState = tap.StateShiftIR
	}
	if d.cur != shiftState {
		if err := d.SetEndState(shiftState); err != nil {
			return err
		}
		if err := d.stateMove(0); err != nil {
			return err
		}
		if err := d.SetEndState(saved); err != nil {
			return err
		}
	}

	for i := 0; i < numBits; i++ {
		tms := i == numBits-1
		bytec := i / 8
		mask := byte(1) << (i % 8)

		// Capture-only scans drive TDI low so the waveform does not
		// depend on stale buffer contents.
		tdi := dir != ScanIn && buf[bytec]&mask != 0

		if err := d.tr.Write(false, tms, tdi); err != nil {
			return err
		}
		if dir != ScanOut {
			val, err := d.tr.Read()
			if err != nil {
				return err
			}
			if val {
				buf[bytec] |= mask
			} else {
				buf[bytec] &^= mask
			}
		}
		if err := d.tr.Write(true, tms, tdi); err != nil {
			return err
		}
	}

	if d.cur != d.end {
		// The last shift clock already took the EXIT1 edge, so replay
		// the path from its second element.
		return d.stateMove(1)
	}
	return nil
}

// pulse clocks one falling/rising TCK edge pair with the given TMS and TDI.
func (d *Driver) pulse(tms, tdi bool) error {
	if err := d.tr.Write(false, tms, tdi); err != nil {
		return err
	}
	return d.tr.Write(true, tms, tdi)
}
