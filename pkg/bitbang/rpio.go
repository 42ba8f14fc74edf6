package bitbang

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIOPins maps the JTAG signals to Broadcom GPIO numbers. TRST, SRST and
// LED are optional; use NoPin to leave a line unwired.
type RPIOPins struct {
	TCK  int
	TMS  int
	TDI  int
	TDO  int
	TRST int
	SRST int
	LED  int
}

// NoPin marks an unconnected signal in RPIOPins.
const NoPin = -1

// RPIOTransport bit-bangs the TAP over Raspberry Pi GPIO lines using the
// /dev/gpiomem interface. The reset lines are treated as active-low
// open-drain: asserted means driven low.
type RPIOTransport struct {
	pins RPIOPins

	tck, tms, tdi, tdo rpio.Pin
	trst, srst, led    rpio.Pin
}

// NewRPIOTransport opens the GPIO memory window and configures the pins.
// Call Close to release it.
func NewRPIOTransport(pins RPIOPins) (*RPIOTransport, error) {
	if pins.TCK < 0 || pins.TMS < 0 || pins.TDI < 0 || pins.TDO < 0 {
		return nil, fmt.Errorf("bitbang: TCK/TMS/TDI/TDO pins are required")
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("bitbang: opening gpio: %w", err)
	}

	t := &RPIOTransport{
		pins: pins,
		tck:  rpio.Pin(pins.TCK),
		tms:  rpio.Pin(pins.TMS),
		tdi:  rpio.Pin(pins.TDI),
		tdo:  rpio.Pin(pins.TDO),
	}
	t.tck.Output()
	t.tms.Output()
	t.tdi.Output()
	t.tdo.Input()
	t.tdo.PullUp()

	if pins.TRST >= 0 {
		t.trst = rpio.Pin(pins.TRST)
		t.trst.Output()
		t.trst.High()
	}
	if pins.SRST >= 0 {
		t.srst = rpio.Pin(pins.SRST)
		t.srst.Output()
		t.srst.High()
	}
	if pins.LED >= 0 {
		t.led = rpio.Pin(pins.LED)
		t.led.Output()
		t.led.Low()
	}

	t.tck.Low()
	return t, nil
}

func (t *RPIOTransport) Write(tck, tms, tdi bool) error {
	// Data lines settle before the clock edge.
	writeLevel(t.tms, tms)
	writeLevel(t.tdi, tdi)
	writeLevel(t.tck, tck)
	return nil
}

func (t *RPIOTransport) Read() (bool, error) {
	return t.tdo.Read() == rpio.High, nil
}

func (t *RPIOTransport) Reset(trst, srst bool) error {
	if t.pins.TRST >= 0 {
		writeLevel(t.trst, !trst)
	}
	if t.pins.SRST >= 0 {
		writeLevel(t.srst, !srst)
	}
	return nil
}

func (t *RPIOTransport) Blink(on bool) error {
	if t.pins.LED >= 0 {
		writeLevel(t.led, on)
	}
	return nil
}

// Close parks TCK low and releases the GPIO mapping.
func (t *RPIOTransport) Close() error {
	t.tck.Low()
	rpio.Close()
	return nil
}

func writeLevel(p rpio.Pin, high bool) {
	if high {
		p.High()
	} else {
		p.Low()
	}
}
