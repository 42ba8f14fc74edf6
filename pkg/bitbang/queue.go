package bitbang

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/tap"
)

// Command is one entry of the debug command queue. The concrete types below
// are the only implementations; anything else reaching the executor is a
// producer/consumer protocol mismatch.
type Command interface {
	isCommand()
}

// ResetCommand asserts or deasserts the TRST and SRST lines.
type ResetCommand struct {
	TRST bool
	SRST bool
}

// RunTestCommand clocks Cycles TCK pulses in IDLE, ending in EndState.
type RunTestCommand struct {
	Cycles   int
	EndState tap.State
}

// StableClocksCommand clocks Cycles pulses while holding the current stable
// state. Legality of the current state is the producer's responsibility.
type StableClocksCommand struct {
	Cycles int
}

// StateMoveCommand moves the TAP to EndState along the oracle's TMS path.
type StateMoveCommand struct {
	EndState tap.State
}

// PathMoveCommand walks an explicit sequence of adjacent states.
type PathMoveCommand struct {
	States []tap.State
}

// ScanField is one segment of a scan payload. Out supplies bits to drive
// (nil for capture-only fields); In receives sampled bits (nil when the
// field is write-only). Check, when set, validates the captured bits after
// the shift; a Check failure degrades the batch result without stopping it.
type ScanField struct {
	NumBits int
	Out     []byte
	In      []byte
	Check   func(in []byte, numBits int) error
}

// ScanCommand shifts the concatenated fields through IR or DR.
type ScanCommand struct {
	IR       bool
	Fields   []ScanField
	EndState tap.State
}

// SleepCommand suspends execution. The delay is coarse and uninterruptible,
// not a scheduling primitive.
type SleepCommand struct {
	Micros int
}

// TMSCommand clocks raw TMS bits, LSB of each byte first.
type TMSCommand struct {
	Bits    []byte
	NumBits int
}

func (ResetCommand) isCommand()        {}
func (RunTestCommand) isCommand()      {}
func (StableClocksCommand) isCommand() {}
func (StateMoveCommand) isCommand()    {}
func (PathMoveCommand) isCommand()     {}
func (ScanCommand) isCommand()         {}
func (SleepCommand) isCommand()        {}
func (TMSCommand) isCommand()          {}

// ResetConfig describes the board's reset wiring.
type ResetConfig struct {
	// SRSTPullsTRST is set when asserting system reset also resets the
	// TAP, so the logical state must follow.
	SRSTPullsTRST bool
}

// Executor drains command batches against a Driver. It is single-threaded
// by contract: one drain at a time, serialized by the caller.
type Executor struct {
	Driver *Driver
	Reset  ResetConfig
}

// NewExecutor creates an executor for the given driver.
func NewExecutor(d *Driver) *Executor {
	return &Executor{Driver: d}
}

// Run executes every command in order. A scan post-check failure degrades
// the result to ErrQueueFailed but does not stop the drain; driver faults
// (contract violations, transport errors) stop it immediately. The
// transport's activity indicator, when present, is lit for the duration.
func (e *Executor) Run(cmds []Command) error {
	d := e.Driver

	blinker, _ := d.tr.(Blinker)
	if blinker != nil {
		blinker.Blink(true)
		defer blinker.Blink(false)
	}

	failed := false
	for _, cmd := range cmds {
		if err := e.execute(cmd); err != nil {
			if err == errScanCheck {
				failed = true
				continue
			}
			return err
		}
	}

	if failed {
		return ErrQueueFailed
	}
	return nil
}

// errScanCheck is an internal marker separating a degraded scan result from
// a drain-stopping fault.
var errScanCheck = fmt.Errorf("scan check failed")

func (e *Executor) execute(cmd Command) error {
	d := e.Driver

	switch c := cmd.(type) {
	case ResetCommand:
		glog.V(2).Infof("reset trst: %v srst: %v", c.TRST, c.SRST)
		// The logical state must track electrical reality: TRST (or
		// SRST on boards where it pulls TRST) resets the TAP without
		// any clocks being issued.
		if c.TRST || (c.SRST && e.Reset.SRSTPullsTRST) {
			d.SetState(tap.StateReset)
		}
		return d.tr.Reset(c.TRST, c.SRST)

	case RunTestCommand:
		glog.V(2).Infof("runtest %d cycles, end in %s", c.Cycles, c.EndState)
		if err := d.SetEndState(c.EndState); err != nil {
			return err
		}
		return d.RunTest(c.Cycles)

	case StableClocksCommand:
		return d.StableClocks(c.Cycles)

	case StateMoveCommand:
		glog.V(2).Infof("statemove end in %s", c.EndState)
		return d.MoveTo(c.EndState)

	case PathMoveCommand:
		return d.PathMove(c.States)

	case ScanCommand:
		return e.scan(c)

	case SleepCommand:
		glog.V(2).Infof("sleep %d us", c.Micros)
		time.Sleep(time.Duration(c.Micros) * time.Microsecond)
		return nil

	case TMSCommand:
		return d.ExecuteTMS(c.Bits, c.NumBits)

	default:
		return fmt.Errorf("%w: unknown command type %T", ErrContract, cmd)
	}
}

// scan gathers the fields into one shift buffer, performs the shift, then
// scatters sampled bits back into each field and runs its check.
func (e *Executor) scan(c ScanCommand) error {
	numBits := 0
	for _, f := range c.Fields {
		numBits += f.NumBits
	}

	buf := make([]byte, (numBits+7)/8)
	hasOut, hasIn := false, false
	pos := 0
	for _, f := range c.Fields {
		if f.Out != nil {
			copyBits(buf, pos, f.Out, 0, f.NumBits)
			hasOut = true
		}
		if f.In != nil {
			hasIn = true
		}
		pos += f.NumBits
	}

	dir := ScanIn
	switch {
	case hasOut && hasIn:
		dir = ScanIO
	case hasOut:
		dir = ScanOut
	}

	glog.V(2).Infof("%s scan, %d bits, end in %s", scanName(c.IR), numBits, c.EndState)

	if err := e.Driver.SetEndState(c.EndState); err != nil {
		return err
	}
	if err := e.Driver.Scan(c.IR, dir, buf, numBits); err != nil {
		return err
	}

	failed := false
	pos = 0
	for _, f := range c.Fields {
		if f.In != nil {
			copyBits(f.In, 0, buf, pos, f.NumBits)
		}
		if f.Check != nil {
			if err := f.Check(f.In, f.NumBits); err != nil {
				glog.Warningf("scan field check failed: %v", err)
				failed = true
			}
		}
		pos += f.NumBits
	}

	if failed {
		return errScanCheck
	}
	return nil
}

func scanName(ir bool) string {
	if ir {
		return "IR"
	}
	return "DR"
}

// copyBits copies n bits from src starting at srcOff into dst at dstOff.
func copyBits(dst []byte, dstOff int, src []byte, srcOff int, n int) {
	for i := 0; i < n; i++ {
		si := srcOff + i
		di := dstOff + i
		if src[si/8]>>(si%8)&1 != 0 {
			dst[di/8] |= 1 << (di % 8)
		} else {
			dst[di/8] &^= 1 << (di % 8)
		}
	}
}
