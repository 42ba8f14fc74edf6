// Package swd implements the Serial Wire Debug register access protocol on
// top of a bit-exchange transport: 8-bit request, turnaround, 3-bit ACK,
// 32-bit data with parity, with WAIT retry and sticky-error clearing.
package swd

import "math/bits"

// Request byte framing. The driver adds the start and park bits; Request
// computes the parity bit over APnDP, RnW and the address.
const (
	reqStart  = 1 << 0
	reqAPnDP  = 1 << 1
	reqRnW    = 1 << 2
	reqAddr   = 3 << 3
	reqParity = 1 << 5
	reqStop   = 0 << 6
	reqPark   = 1 << 7
)

// ACK codes as sampled LSB first from the wire.
const (
	AckOK    = 0x1
	AckWait  = 0x2
	AckFault = 0x4
)

// Debug Port register addresses.
const (
	RegAbort    = 0x0
	RegIDR      = 0x0
	RegCtrlStat = 0x4
	RegSelect   = 0x8
	RegRdBuff   = 0xC
)

// ABORT register bits.
const (
	DAPAbort   = 1 << 0
	StkCmpClr  = 1 << 1
	StkErrClr  = 1 << 2
	WdErrClr   = 1 << 3
	OrunErrClr = 1 << 4

	// clearStickyErrors resets every latched fault condition in the
	// target's debug port.
	clearStickyErrors = StkCmpClr | StkErrClr | WdErrClr | OrunErrClr
)

// Request builds the unframed SWD request byte for a register access.
// reg is the register address; only A[3:2] are encoded.
func Request(read, ap bool, reg uint8) byte {
	cmd := byte(0)
	if ap {
		cmd |= reqAPnDP
	}
	if read {
		cmd |= reqRnW
	}
	cmd |= (reg & 0xC) << 1
	if parity32(uint32(cmd)) {
		cmd |= reqParity
	}
	return cmd
}

// IsRead reports whether the request byte has the RnW bit set.
func IsRead(req byte) bool { return req&reqRnW != 0 }

// IsAP reports whether the request byte addresses an Access Port register.
func IsAP(req byte) bool { return req&reqAPnDP != 0 }

// RegAddr extracts the register address bits A[3:2] from a request byte.
func RegAddr(req byte) uint8 { return (req & reqAddr) >> 1 }

// parity32 returns the odd-bit parity of v.
func parity32(v uint32) bool {
	return bits.OnesCount32(v)%2 != 0
}

// Sequence names a fixed line handshake pattern.
type Sequence int

const (
	// SeqLineReset holds SWDIO high for at least 50 clocks, then idles.
	SeqLineReset Sequence = iota
	// SeqJTAGToSWD sends the JTAG-to-SWD switching token between two
	// line resets.
	SeqJTAGToSWD
	// SeqSWDToJTAG sends the SWD-to-JTAG switching token after a line
	// reset.
	SeqSWDToJTAG
)

func (s Sequence) String() string {
	switch s {
	case SeqLineReset:
		return "line reset"
	case SeqJTAGToSWD:
		return "JTAG-to-SWD"
	case SeqSWDToJTAG:
		return "SWD-to-JTAG"
	}
	return "unknown sequence"
}

var seqLineReset = []byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0x00,
}

const seqLineResetBits = 64

var seqJTAGToSWD = []byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0x9E, 0xE7,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0x00,
}

const seqJTAGToSWDBits = 136

var seqSWDToJTAG = []byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0x3C, 0xE7,
	0xFF,
}

const seqSWDToJTAGBits = 80
