package swd

import (
	"errors"
	"testing"
)

// abortReq is the framed request byte of the sticky-error clearing write.
const abortReq = 0x81

type regWrite struct {
	req byte
	val uint32
}

// scriptWire is a scripted Exchanger. Each transaction pops one ACK from the
// script; read data pops from data. Register writes are decoded from the
// 33-bit data exchange and attributed to the most recent request byte.
type scriptWire struct {
	acks       []int
	data       []uint32
	flipParity bool
	err        error
	driveErr   error

	writes    []regWrite
	aborts    int
	idles     []int
	drives    []bool
	raw       []int
	exchanges int

	lastReq byte
}

func (w *scriptWire) popAck() int {
	if len(w.acks) == 0 {
		return AckOK
	}
	ack := w.acks[0]
	w.acks = w.acks[1:]
	return ack
}

func (w *scriptWire) popData() uint32 {
	if len(w.data) == 0 {
		return 0
	}
	v := w.data[0]
	w.data = w.data[1:]
	return v
}

func (w *scriptWire) Exchange(read bool, buf []byte, offset, numBits int) error {
	w.exchanges++
	if w.err != nil {
		return w.err
	}

	if read {
		if buf == nil {
			w.idles = append(w.idles, numBits)
			return nil
		}
		ack := w.popAck()
		setBits(buf, 1, 3, uint32(ack))
		if numBits == 38 && ack == AckOK {
			v := w.popData()
			setBits(buf, 1+3, 32, v)
			par := parity32(v) != w.flipParity
			bit := uint32(0)
			if par {
				bit = 1
			}
			setBits(buf, 1+3+32, 1, bit)
		}
		return nil
	}

	switch {
	case numBits == 8 && offset == 0:
		w.lastReq = buf[0]
	case numBits == 33 && offset == 5:
		wr := regWrite{req: w.lastReq, val: getBits(buf, 5, 32)}
		w.writes = append(w.writes, wr)
		if wr.req == abortReq {
			w.aborts++
		}
	default:
		w.raw = append(w.raw, numBits)
	}
	return nil
}

func (w *scriptWire) DriveSWDIO(out bool) error {
	w.drives = append(w.drives, out)
	return w.driveErr
}

func TestReadRegRoundTrip(t *testing.T) {
	wire := &scriptWire{acks: []int{AckOK}, data: []uint32{0x2BA01477}}
	e := NewEngine(wire)

	var idr uint32
	if err := e.ReadReg(Request(true, false, RegIDR), &idr, 0); err != nil {
		t.Fatalf("ReadReg() error = %v", err)
	}
	if err := e.RunQueue(); err != nil {
		t.Fatalf("RunQueue() error = %v", err)
	}

	if idr != 0x2BA01477 {
		t.Errorf("read %08x, want 2BA01477", idr)
	}
	if wire.lastReq != 0xA5 {
		t.Errorf("framed request = %02x, want A5", wire.lastReq)
	}
	// Line released for the target's response, reclaimed after.
	if len(wire.drives) != 2 || wire.drives[0] || !wire.drives[1] {
		t.Errorf("drive sequence = %v, want [false true]", wire.drives)
	}
}

func TestWriteRegRoundTrip(t *testing.T) {
	wire := &scriptWire{acks: []int{AckOK}}
	e := NewEngine(wire)

	if err := e.WriteReg(Request(false, false, RegSelect), 0x01000000, 0); err != nil {
		t.Fatalf("WriteReg() error = %v", err)
	}
	if err := e.RunQueue(); err != nil {
		t.Fatalf("RunQueue() error = %v", err)
	}

	if len(wire.writes) != 1 {
		t.Fatalf("got %d writes, want 1", len(wire.writes))
	}
	if wire.writes[0] != (regWrite{req: 0xB1, val: 0x01000000}) {
		t.Errorf("write = %+v, want req B1 val 01000000", wire.writes[0])
	}
}

func TestReadRegParityFault(t *testing.T) {
	wire := &scriptWire{acks: []int{AckOK}, data: []uint32{0x12345678}, flipParity: true}
	e := NewEngine(wire)

	if err := e.ReadReg(Request(true, false, RegIDR), nil, 0); err != nil {
		t.Fatalf("ReadReg() error = %v", err)
	}
	if err := e.RunQueue(); !errors.Is(err, ErrParity) {
		t.Errorf("RunQueue() error = %v, want ErrParity", err)
	}
}

// A WAIT answer triggers a sticky-error clearing ABORT write, then a retry.
// Each ABORT write consumes one scripted ACK of its own.
func TestWaitRetryClearsSticky(t *testing.T) {
	wire := &scriptWire{
		acks: []int{AckWait, AckOK, AckWait, AckOK, AckOK},
		data: []uint32{0xF00DCAFE},
	}
	e := NewEngine(wire)

	var v uint32
	if err := e.ReadReg(Request(true, false, RegCtrlStat), &v, 0); err != nil {
		t.Fatalf("ReadReg() error = %v", err)
	}
	if err := e.RunQueue(); err != nil {
		t.Fatalf("RunQueue() error = %v", err)
	}

	if v != 0xF00DCAFE {
		t.Errorf("read %08x, want F00DCAFE", v)
	}
	if wire.aborts != 2 {
		t.Errorf("got %d abort writes, want 2", wire.aborts)
	}
	for _, wr := range wire.writes {
		if wr.req == abortReq && wr.val != clearStickyErrors {
			t.Errorf("abort write value = %08x, want %08x", wr.val, uint32(clearStickyErrors))
		}
	}
}

// A target that answers WAIT to everything, including the sticky-clear
// ABORT write, must surface ErrWaitRetries after a bounded number of
// transactions. The clearing write itself never retries: retrying there
// would loop without ever advancing the attempt counter.
func TestWaitOnStickyClearTerminates(t *testing.T) {
	allWait := make([]int, 64)
	for i := range allWait {
		allWait[i] = AckWait
	}

	t.Run("read", func(t *testing.T) {
		wire := &scriptWire{acks: append([]int(nil), allWait...)}
		e := NewEngine(wire)
		e.MaxWaitRetries = 4

		if err := e.ReadReg(Request(true, false, RegCtrlStat), nil, 0); err != nil {
			t.Fatalf("ReadReg() error = %v", err)
		}
		if err := e.RunQueue(); !errors.Is(err, ErrWaitRetries) {
			t.Errorf("RunQueue() error = %v, want ErrWaitRetries", err)
		}
		if wire.exchanges > 16 {
			t.Errorf("%d exchanges against a wedged target, want a bounded handful", wire.exchanges)
		}
	})

	t.Run("write", func(t *testing.T) {
		wire := &scriptWire{acks: append([]int(nil), allWait...)}
		e := NewEngine(wire)
		e.MaxWaitRetries = 4

		if err := e.WriteReg(Request(false, false, RegSelect), 0, 0); err != nil {
			t.Fatalf("WriteReg() error = %v", err)
		}
		if err := e.RunQueue(); !errors.Is(err, ErrWaitRetries) {
			t.Errorf("RunQueue() error = %v, want ErrWaitRetries", err)
		}
		if wire.exchanges > 16 {
			t.Errorf("%d exchanges against a wedged target, want a bounded handful", wire.exchanges)
		}
	})
}

func TestDriveErrorLatches(t *testing.T) {
	boom := errors.New("bridge unplugged")

	wire := &scriptWire{driveErr: boom}
	e := NewEngine(wire)
	if err := e.ReadReg(Request(true, false, RegIDR), nil, 0); err != nil {
		t.Fatalf("ReadReg() error = %v", err)
	}
	if err := e.RunQueue(); !errors.Is(err, boom) {
		t.Errorf("RunQueue() error = %v, want the turnaround error", err)
	}

	wire = &scriptWire{driveErr: boom}
	e = NewEngine(wire)
	if err := e.WriteReg(Request(false, false, RegSelect), 0, 0); err != nil {
		t.Fatalf("WriteReg() error = %v", err)
	}
	if err := e.RunQueue(); !errors.Is(err, boom) {
		t.Errorf("RunQueue() error = %v, want the turnaround error", err)
	}
}

func TestWaitRetriesExhausted(t *testing.T) {
	wire := &scriptWire{
		acks: []int{AckWait, AckOK, AckWait, AckOK, AckWait},
	}
	e := NewEngine(wire)
	e.MaxWaitRetries = 2

	if err := e.ReadReg(Request(true, false, RegCtrlStat), nil, 0); err != nil {
		t.Fatalf("ReadReg() error = %v", err)
	}
	if err := e.RunQueue(); !errors.Is(err, ErrWaitRetries) {
		t.Errorf("RunQueue() error = %v, want ErrWaitRetries", err)
	}
}

// After a FAULT the rest of the batch must be skipped without touching the
// wire, and the error must surface exactly once from RunQueue.
func TestFaultShortCircuitsBatch(t *testing.T) {
	wire := &scriptWire{acks: []int{AckFault}}
	e := NewEngine(wire)

	if err := e.ReadReg(Request(true, false, RegIDR), nil, 0); err != nil {
		t.Fatalf("ReadReg() error = %v", err)
	}
	before := wire.exchanges

	if err := e.WriteReg(Request(false, false, RegSelect), 0, 0); err != nil {
		t.Fatalf("WriteReg() error = %v", err)
	}
	if err := e.ReadReg(Request(true, false, RegRdBuff), nil, 0); err != nil {
		t.Fatalf("ReadReg() error = %v", err)
	}
	if wire.exchanges != before {
		t.Errorf("%d exchanges after fault, want none", wire.exchanges-before)
	}

	err := e.RunQueue()
	var ackErr *AckError
	if !errors.As(err, &ackErr) || ackErr.Ack != AckFault {
		t.Fatalf("RunQueue() error = %v, want AckError{FAULT}", err)
	}

	// Latch cleared: the next batch runs normally.
	if err := e.RunQueue(); err != nil {
		t.Errorf("second RunQueue() error = %v, want nil", err)
	}
}

func TestJunkAckLatches(t *testing.T) {
	wire := &scriptWire{acks: []int{0x7}}
	e := NewEngine(wire)

	if err := e.ReadReg(Request(true, false, RegIDR), nil, 0); err != nil {
		t.Fatalf("ReadReg() error = %v", err)
	}
	err := e.RunQueue()
	var ackErr *AckError
	if !errors.As(err, &ackErr) || ackErr.Ack != 0x7 {
		t.Errorf("RunQueue() error = %v, want AckError{7}", err)
	}
}

func TestAPAccessDelay(t *testing.T) {
	wire := &scriptWire{acks: []int{AckOK}, data: []uint32{1}}
	e := NewEngine(wire)

	var v uint32
	if err := e.ReadReg(Request(true, true, 0x0), &v, 12); err != nil {
		t.Fatalf("ReadReg() error = %v", err)
	}
	if len(wire.idles) != 1 || wire.idles[0] != 12 {
		t.Errorf("idle exchanges = %v, want [12]", wire.idles)
	}
}

func TestRunQueueIdleClocks(t *testing.T) {
	wire := &scriptWire{}
	e := NewEngine(wire)

	if err := e.RunQueue(); err != nil {
		t.Fatalf("RunQueue() error = %v", err)
	}
	if len(wire.idles) != 1 || wire.idles[0] != 8 {
		t.Errorf("idle exchanges = %v, want [8]", wire.idles)
	}
}

func TestRequestDirectionContract(t *testing.T) {
	e := NewEngine(&scriptWire{})

	if err := e.ReadReg(Request(false, false, RegAbort), nil, 0); err == nil {
		t.Error("ReadReg accepted a write request")
	}
	if err := e.WriteReg(Request(true, false, RegIDR), 0, 0); err == nil {
		t.Error("WriteReg accepted a read request")
	}
}

func TestEngineNotReady(t *testing.T) {
	e := NewEngine(nil)

	if err := e.ReadReg(Request(true, false, RegIDR), nil, 0); !errors.Is(err, ErrNotReady) {
		t.Errorf("ReadReg() error = %v, want ErrNotReady", err)
	}
	if err := e.RunQueue(); !errors.Is(err, ErrNotReady) {
		t.Errorf("RunQueue() error = %v, want ErrNotReady", err)
	}
}

func TestSwitchSeq(t *testing.T) {
	tests := []struct {
		seq      Sequence
		wantBits int
	}{
		{SeqLineReset, seqLineResetBits},
		{SeqJTAGToSWD, seqJTAGToSWDBits},
		{SeqSWDToJTAG, seqSWDToJTAGBits},
	}

	for _, tt := range tests {
		t.Run(tt.seq.String(), func(t *testing.T) {
			wire := &scriptWire{}
			e := NewEngine(wire)

			if err := e.SwitchSeq(tt.seq); err != nil {
				t.Fatalf("SwitchSeq() error = %v", err)
			}
			if len(wire.raw) != 1 || wire.raw[0] != tt.wantBits {
				t.Errorf("raw exchanges = %v, want [%d]", wire.raw, tt.wantBits)
			}
		})
	}

	e := NewEngine(&scriptWire{})
	if err := e.SwitchSeq(Sequence(99)); !errors.Is(err, ErrUnsupportedSeq) {
		t.Errorf("SwitchSeq(99) error = %v, want ErrUnsupportedSeq", err)
	}
}
