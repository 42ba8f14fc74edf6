package swd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
)

// Micro-protocol opcodes understood by the serial bridge.
const (
	opWriteExchange = 0xF0
	opReadExchange  = 0xF1
	opDriveRelease  = 0xE0
	opDriveAssert   = 0xE1
)

// ErrReadTimeout means the bridge stopped answering mid-response.
var ErrReadTimeout = errors.New("swd: read timeout")

// DefaultReadTimeout bounds the response accumulation loop when
// HexWire.ReadTimeout is left zero.
const DefaultReadTimeout = time.Second

// defaultDelayPause stands in for delay clocks that produce no host
// visible bus activity: the bridge clocks them on its own, the host just
// has to give it time.
const defaultDelayPause = 10 * time.Millisecond

// HexWire speaks the ASCII-hex exchange micro-protocol over a byte stream:
// a 7-byte header (opcode, 2 hex digits bit count, 2 hex digits bit offset,
// 2 hex digits payload length), an optional hex payload, and a hex
// response. It implements Exchanger and is the sole path for SWD traffic;
// the byte-oriented bridge never exposes individual clock edges.
type HexWire struct {
	rw io.ReadWriter

	// ReadTimeout bounds the whole accumulate-until-N response loop.
	// Zero selects DefaultReadTimeout.
	ReadTimeout time.Duration

	// DelayPause is how long a capture-less read exchange waits in
	// place of consuming a response. Zero selects defaultDelayPause.
	DelayPause time.Duration

	local [1024]byte
}

// NewHexWire wraps an opened byte stream.
func NewHexWire(rw io.ReadWriter) *HexWire {
	return &HexWire{rw: rw}
}

// Exchange clocks numBits bits at bit offset within buf. Bit counts and
// offsets are limited to one header byte each (0..255).
func (w *HexWire) Exchange(read bool, buf []byte, offset, numBits int) error {
	if numBits < 0 || numBits > 0xFF || offset < 0 || offset > 0xFF {
		return fmt.Errorf("swd: exchange of %d bits at offset %d out of range", numBits, offset)
	}

	payLen := 0
	if buf != nil {
		payLen = (numBits + offset + 7) / 8
	}

	op := byte(opWriteExchange)
	if read {
		op = opReadExchange
	}
	header := [7]byte{
		op,
		hexDigit(byte(numBits) >> 4), hexDigit(byte(numBits) & 0xF),
		hexDigit(byte(offset) >> 4), hexDigit(byte(offset) & 0xF),
		hexDigit(byte(payLen) >> 4), hexDigit(byte(payLen) & 0xF),
	}
	if _, err := w.rw.Write(header[:]); err != nil {
		return fmt.Errorf("swd: writing exchange header: %w", err)
	}

	if read {
		if buf == nil {
			// Unclocked delay cycles produce no host-visible bus
			// activity to consume.
			time.Sleep(w.delayPause())
			return nil
		}
		if err := w.readResponse(payLen); err != nil {
			return err
		}
		for i := offset; i < offset+numBits; i++ {
			mask := byte(1) << (i % 8)
			if w.local[i/8]&mask != 0 {
				buf[i/8] |= mask
			} else {
				buf[i/8] &^= mask
			}
		}
		return nil
	}

	want := 1
	if buf != nil {
		var hex [2]byte
		for i := 0; i < payLen; i++ {
			hex[0] = hexDigit(buf[i] >> 4)
			hex[1] = hexDigit(buf[i] & 0xF)
			if _, err := w.rw.Write(hex[:]); err != nil {
				return fmt.Errorf("swd: writing exchange payload: %w", err)
			}
		}
		want = payLen
	}
	return w.readResponse(want)
}

// DriveSWDIO switches the bridge's SWDIO line between output and input.
// The single opcode byte has no payload and no response.
func (w *HexWire) DriveSWDIO(out bool) error {
	op := []byte{opDriveRelease}
	if out {
		op[0] = opDriveAssert
	}
	n, err := w.rw.Write(op)
	if err != nil {
		return fmt.Errorf("swd: switching line drive: %w", err)
	}
	if n == 0 {
		glog.V(2).Info("drive opcode not accepted")
	}
	return nil
}

// readResponse blocks until want bytes worth of hex digit pairs have been
// assembled into the local buffer, or the deadline passes.
func (w *HexWire) readResponse(want int) error {
	deadline := time.Now().Add(w.readTimeout())
	var chunk [128]byte

	count := 0
	for count/2 < want {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: got %d of %d response bytes", ErrReadTimeout, count/2, want)
		}
		n, err := w.rw.Read(chunk[:])
		if err != nil && err != io.EOF {
			return fmt.Errorf("swd: reading exchange response: %w", err)
		}
		if n == 0 {
			// The bridge has not answered yet; back off instead of
			// spinning on the stream until the deadline.
			time.Sleep(time.Millisecond)
			continue
		}
		for i := 0; i < n && count/2 < want; i++ {
			v := hexValue(chunk[i])
			if count%2 == 0 {
				w.local[count/2] = v << 4
			} else {
				w.local[count/2] |= v
			}
			count++
		}
	}
	return nil
}

func (w *HexWire) readTimeout() time.Duration {
	if w.ReadTimeout > 0 {
		return w.ReadTimeout
	}
	return DefaultReadTimeout
}

func (w *HexWire) delayPause() time.Duration {
	if w.DelayPause > 0 {
		return w.DelayPause
	}
	return defaultDelayPause
}

func hexDigit(v byte) byte {
	if v > 9 {
		return v - 10 + 'A'
	}
	return v + '0'
}

func hexValue(c byte) byte {
	if c >= 'A' {
		return c - 'A' + 10
	}
	return c - '0'
}
