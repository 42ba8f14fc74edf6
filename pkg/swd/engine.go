package swd

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
)

// Exchanger is the bit-exchange capability the engine runs on: clock bits
// while writing and/or reading SWDIO at a bit offset, and switch the line
// drive direction for turnarounds.
type Exchanger interface {
	// Exchange clocks numBits bits starting at bit offset within buf.
	// When read is true the sampled bits are stored into buf; otherwise
	// buf supplies the bits to drive. A nil buf clocks without any host
	// visible data (delay cycles).
	Exchange(read bool, buf []byte, offset, numBits int) error
	// DriveSWDIO asserts (out) or releases the SWDIO line drive.
	DriveSWDIO(out bool) error
}

var (
	// ErrNotReady means the engine was used before a transport was
	// attached. This is a caller bug, not a runtime condition.
	ErrNotReady = errors.New("swd: transport not initialized")

	// ErrParity marks a parity mismatch on read data: a protocol fault
	// reported at the next RunQueue, never retried.
	ErrParity = errors.New("swd: wrong parity")

	// ErrWaitRetries means the target kept answering WAIT beyond the
	// configured retry budget.
	ErrWaitRetries = errors.New("swd: WAIT retries exhausted")

	// ErrUnsupportedSeq marks a request for a switch sequence the
	// engine does not know.
	ErrUnsupportedSeq = errors.New("swd: sequence not supported")
)

// AckError is a FAULT or unrecognized ACK code received from the target.
type AckError struct {
	Ack int
}

func (e *AckError) Error() string {
	if e.Ack == AckFault {
		return "swd: ACK FAULT"
	}
	return fmt.Sprintf("swd: no valid acknowledge (ack=%d)", e.Ack)
}

// DefaultWaitRetries bounds the WAIT retry loop when Engine.MaxWaitRetries
// is left zero. A bound turns a wedged target that answers WAIT forever
// into a reportable error.
const DefaultWaitRetries = 64

// Engine queues SWD register accesses. The first fault, parity error or
// junk ACK in a batch latches; subsequent accesses become no-ops until
// RunQueue reports the latched error and clears it. Single-threaded by
// contract: one batch at a time, serialized by the caller.
type Engine struct {
	wire Exchanger

	// MaxWaitRetries bounds the WAIT retry loop per transaction. Zero
	// selects DefaultWaitRetries.
	MaxWaitRetries int

	queued error

	// clearing is set while the sticky-clear ABORT write is in flight.
	// That write must not retry on WAIT: retrying would recurse through
	// clearSticky before any attempt counter advances.
	clearing bool
}

// NewEngine creates an engine on the given bit-exchange transport.
func NewEngine(wire Exchanger) *Engine {
	return &Engine{wire: wire}
}

// ReadReg performs a register read transaction. The returned error is
// non-nil only for contract violations (nil transport, a request byte
// without the read bit); protocol faults latch and surface from RunQueue.
// On success *value receives the register contents. For AP reads apDelay
// extra clocks are exchanged so the access pipelines through.
func (e *Engine) ReadReg(req byte, value *uint32, apDelay int) error {
	if e.wire == nil {
		return ErrNotReady
	}
	if !IsRead(req) {
		return fmt.Errorf("swd: ReadReg with write request %02x", req)
	}
	if e.queued != nil {
		glog.V(2).Infof("skip read reg %X: queued error %v", RegAddr(req), e.queued)
		return nil
	}

	for attempt := 0; ; attempt++ {
		// turnaround + ack + data + parity + turnaround
		var field [6]byte

		cmd := req | reqStart | reqPark
		if err := e.wire.Exchange(false, []byte{cmd}, 0, 8); err != nil {
			e.queued = err
			return nil
		}

		if err := e.wire.DriveSWDIO(false); err != nil {
			e.queued = err
			return nil
		}
		if err := e.wire.Exchange(true, field[:], 0, 1+3+32+1+1); err != nil {
			e.queued = err
			return nil
		}
		if err := e.wire.DriveSWDIO(true); err != nil {
			e.queued = err
			return nil
		}

		ack := int(getBits(field[:], 1, 3))
		data := getBits(field[:], 1+3, 32)
		par := getBits(field[:], 1+3+32, 1)

		glog.V(2).Infof("%s %s read reg %X = %08x", ackName(ack), portName(req), RegAddr(req), data)

		switch ack {
		case AckOK:
			if (par != 0) != parity32(data) {
				glog.V(2).Info("wrong parity detected")
				e.queued = ErrParity
				return nil
			}
			if value != nil {
				*value = data
			}
			if IsAP(req) && apDelay > 0 {
				if err := e.wire.Exchange(true, nil, 0, apDelay); err != nil {
					e.queued = err
				}
			}
			return nil

		case AckWait:
			if attempt >= e.waitBudget() {
				e.queued = ErrWaitRetries
				return nil
			}
			e.clearSticky()
			if e.queued != nil {
				return nil
			}

		default:
			e.queued = &AckError{Ack: ack}
			return nil
		}
	}
}

// WriteReg performs a register write transaction, with the same error
// contract as ReadReg. A WAIT during the sticky-clear write itself counts
// as retry exhaustion: the target is wedged and recursing into another
// clear would never advance the retry budget.
func (e *Engine) WriteReg(req byte, value uint32, apDelay int) error {
	if e.wire == nil {
		return ErrNotReady
	}
	if IsRead(req) {
		return fmt.Errorf("swd: WriteReg with read request %02x", req)
	}
	if e.queued != nil {
		glog.V(2).Infof("skip write reg %X: queued error %v", RegAddr(req), e.queued)
		return nil
	}

	for attempt := 0; ; attempt++ {
		var field [6]byte
		setBits(field[:], 1+3+1, 32, value)
		if parity32(value) {
			setBits(field[:], 1+3+1+32, 1, 1)
		}

		cmd := req | reqStart | reqPark
		if err := e.wire.Exchange(false, []byte{cmd}, 0, 8); err != nil {
			e.queued = err
			return nil
		}

		// The target answers the ACK before the host reclaims the
		// line, so the write happens in two exchanges around the
		// turnaround.
		if err := e.wire.DriveSWDIO(false); err != nil {
			e.queued = err
			return nil
		}
		if err := e.wire.Exchange(true, field[:], 0, 1+3+1); err != nil {
			e.queued = err
			return nil
		}
		if err := e.wire.DriveSWDIO(true); err != nil {
			e.queued = err
			return nil
		}

		if err := e.wire.Exchange(false, field[:], 1+3+1, 32+1); err != nil {
			e.queued = err
			return nil
		}

		ack := int(getBits(field[:], 1, 3))
		glog.V(2).Infof("%s %s write reg %X = %08x", ackName(ack), portName(req), RegAddr(req), value)

		switch ack {
		case AckOK:
			if IsAP(req) && apDelay > 0 {
				if err := e.wire.Exchange(true, nil, 0, apDelay); err != nil {
					e.queued = err
				}
			}
			return nil

		case AckWait:
			if e.clearing || attempt >= e.waitBudget() {
				e.queued = ErrWaitRetries
				return nil
			}
			e.clearSticky()
			if e.queued != nil {
				return nil
			}

		default:
			e.queued = &AckError{Ack: ack}
			return nil
		}
	}
}

// RunQueue flushes eight idle clocks so trailing data fully clocks through
// the debug port, then reports and clears the latched batch error.
func (e *Engine) RunQueue() error {
	if e.wire == nil {
		return ErrNotReady
	}

	// A transaction must be followed by another transaction or at least
	// 8 idle cycles to ensure that data is clocked through the AP.
	if err := e.wire.Exchange(true, nil, 0, 8); err != nil && e.queued == nil {
		e.queued = err
	}

	ret := e.queued
	e.queued = nil
	glog.V(2).Infof("SWD queue result: %v", ret)
	return ret
}

// SwitchSeq transmits one of the fixed line handshake patterns. No
// response is captured.
func (e *Engine) SwitchSeq(seq Sequence) error {
	if e.wire == nil {
		return ErrNotReady
	}

	glog.V(2).Infof("SWD switch sequence: %s", seq)
	switch seq {
	case SeqLineReset:
		return e.wire.Exchange(false, seqLineReset, 0, seqLineResetBits)
	case SeqJTAGToSWD:
		return e.wire.Exchange(false, seqJTAGToSWD, 0, seqJTAGToSWDBits)
	case SeqSWDToJTAG:
		return e.wire.Exchange(false, seqSWDToJTAG, 0, seqSWDToJTAGBits)
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedSeq, seq)
	}
}

// clearSticky issues the ABORT write that resets the target's latched
// fault conditions before a WAIT retry. The write is non-retrying.
func (e *Engine) clearSticky() {
	e.clearing = true
	e.WriteReg(Request(false, false, RegAbort), clearStickyErrors, 0)
	e.clearing = false
}

func (e *Engine) waitBudget() int {
	if e.MaxWaitRetries > 0 {
		return e.MaxWaitRetries
	}
	return DefaultWaitRetries
}

func ackName(ack int) string {
	switch ack {
	case AckOK:
		return "OK"
	case AckWait:
		return "WAIT"
	case AckFault:
		return "FAULT"
	}
	return "JUNK"
}

func portName(req byte) string {
	if IsAP(req) {
		return "AP"
	}
	return "DP"
}

// getBits extracts numBits bits from buf starting at bit offset, LSB first.
func getBits(buf []byte, offset, numBits int) uint32 {
	var v uint32
	for i := 0; i < numBits; i++ {
		pos := offset + i
		if buf[pos/8]>>(pos%8)&1 != 0 {
			v |= 1 << i
		}
	}
	return v
}

// setBits stores numBits bits of v into buf starting at bit offset.
func setBits(buf []byte, offset, numBits int, v uint32) {
	for i := 0; i < numBits; i++ {
		pos := offset + i
		if v>>i&1 != 0 {
			buf[pos/8] |= 1 << (pos % 8)
		} else {
			buf[pos/8] &^= 1 << (pos % 8)
		}
	}
}
