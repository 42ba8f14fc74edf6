// Package probe ties a debug session to exactly one transport path: JTAG
// over a pin-level transport, or SWD over the serial hex bridge.
package probe

import (
	"errors"
	"fmt"
	"io"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/bitbang"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/swd"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/tap"
)

// Mode is the active transport path of a session.
type Mode int

const (
	ModeNone Mode = iota
	ModeJTAG
	ModeSWD
)

func (m Mode) String() string {
	switch m {
	case ModeJTAG:
		return "jtag"
	case ModeSWD:
		return "swd"
	}
	return "none"
}

// ErrModeSet means the session already committed to a transport path. The
// two paths are mutually exclusive per session.
var ErrModeSet = errors.New("probe: session mode already selected")

// Session owns the mutable state of one debug session: the TAP position
// and executor in JTAG mode, or the SWD engine and its serial stream in
// SWD mode. A Session must not be shared between goroutines; every
// operation assumes exclusive ownership for its duration.
type Session struct {
	mode Mode

	exec   *bitbang.Executor
	engine *swd.Engine
	stream io.Closer
}

// NewSession creates a session with no transport attached.
func NewSession() *Session {
	return &Session{}
}

// Mode reports the selected transport path.
func (s *Session) Mode() Mode { return s.mode }

// AttachJTAG commits the session to the JTAG path over the given pin
// transport and returns the queue executor. A nil oracle selects the
// standard state table.
func (s *Session) AttachJTAG(tr bitbang.Transport, oracle tap.StateOracle) (*bitbang.Executor, error) {
	if s.mode != ModeNone {
		return nil, fmt.Errorf("%w: %s", ErrModeSet, s.mode)
	}
	s.exec = bitbang.NewExecutor(bitbang.NewDriver(tr, oracle))
	s.mode = ModeJTAG
	return s.exec, nil
}

// AttachSWD opens the serial bridge and commits the session to the SWD
// path, returning the transaction engine. The stream stays open for the
// life of the session.
func (s *Session) AttachSWD(cfg swd.PortConfig) (*swd.Engine, error) {
	if s.mode != ModeNone {
		return nil, fmt.Errorf("%w: %s", ErrModeSet, s.mode)
	}
	port, err := swd.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	s.stream = port
	s.engine = swd.NewEngine(swd.NewHexWire(port))
	s.mode = ModeSWD
	return s.engine, nil
}

// Executor returns the JTAG queue executor, or nil outside JTAG mode.
func (s *Session) Executor() *bitbang.Executor { return s.exec }

// Engine returns the SWD engine, or nil outside SWD mode.
func (s *Session) Engine() *swd.Engine { return s.engine }

// Close releases the session's stream, if any.
func (s *Session) Close() error {
	if s.stream != nil {
		err := s.stream.Close()
		s.stream = nil
		return err
	}
	return nil
}
