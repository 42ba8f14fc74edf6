package bitbang

// PinState is one latched set of output levels as seen by a PinSim.
type PinState struct {
	TCK bool
	TMS bool
	TDI bool
}

// ResetOp records one Reset invocation.
type ResetOp struct {
	TRST bool
	SRST bool
}

// PinSim is an in-memory Transport for unit tests. It records every pin
// write and reset, counts rising TCK edges, and sources TDO either from the
// OnRead hook or, by default, from the most recently driven TDI (loopback).
type PinSim struct {
	// OnRead, when set, supplies TDO for the next sample. Otherwise the
	// simulator behaves as if TDO were wired to TDI.
	OnRead func() bool

	Writes []PinState
	Resets []ResetOp
	Blinks []bool

	lastTCK bool
	lastTDI bool
	rising  int
}

// NewPinSim constructs a loopback pin simulator.
func NewPinSim() *PinSim {
	return &PinSim{}
}

// RisingEdges reports how many TCK rising edges have been clocked.
func (s *PinSim) RisingEdges() int { return s.rising }

// LastWrite returns the most recent pin state, or the zero state when
// nothing has been written.
func (s *PinSim) LastWrite() PinState {
	if len(s.Writes) == 0 {
		return PinState{}
	}
	return s.Writes[len(s.Writes)-1]
}

func (s *PinSim) Write(tck, tms, tdi bool) error {
	if tck && !s.lastTCK {
		s.rising++
	}
	s.lastTCK = tck
	s.lastTDI = tdi
	s.Writes = append(s.Writes, PinState{TCK: tck, TMS: tms, TDI: tdi})
	return nil
}

func (s *PinSim) Read() (bool, error) {
	if s.OnRead != nil {
		return s.OnRead(), nil
	}
	return s.lastTDI, nil
}

func (s *PinSim) Reset(trst, srst bool) error {
	s.Resets = append(s.Resets, ResetOp{TRST: trst, SRST: srst})
	return nil
}

func (s *PinSim) Blink(on bool) error {
	s.Blinks = append(s.Blinks, on)
	return nil
}
