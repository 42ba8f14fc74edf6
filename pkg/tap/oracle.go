package tap

import "fmt"

// Path is a TMS bit sequence, transmitted LSB first, that walks the TAP
// controller between two stable states. Len is at most 7.
type Path struct {
	Bits uint8
	Len  int
}

// StateOracle answers the three questions a TAP driver needs: whether a
// state is stable, which TMS bits move between two stable states, and which
// state a single TMS edge leads to.
type StateOracle interface {
	IsStable(s State) bool
	TMSPath(from, to State) (Path, error)
	NextState(from State, tms bool) State
}

// StandardOracle implements StateOracle with the standard IEEE 1149.1
// controller graph and the conventional short TMS sequences between stable
// states. Staying in RESET clocks seven extra TMS-high bits, which is
// harmless and keeps flaky adapters settled.
type StandardOracle struct{}

var next0 = [16]State{
	StateReset:     StateIdle,
	StateIdle:      StateIdle,
	StateSelectDR:  StateCaptureDR,
	StateCaptureDR: StateShiftDR,
	StateShiftDR:   StateShiftDR,
	StateExit1DR:   StatePauseDR,
	StatePauseDR:   StatePauseDR,
	StateExit2DR:   StateShiftDR,
	StateUpdateDR:  StateIdle,
	StateSelectIR:  StateCaptureIR,
	StateCaptureIR: StateShiftIR,
	StateShiftIR:   StateShiftIR,
	StateExit1IR:   StatePauseIR,
	StatePauseIR:   StatePauseIR,
	StateExit2IR:   StateShiftIR,
	StateUpdateIR:  StateIdle,
}

var next1 = [16]State{
	StateReset:     StateReset,
	StateIdle:      StateSelectDR,
	StateSelectDR:  StateSelectIR,
	StateCaptureDR: StateExit1DR,
	StateShiftDR:   StateExit1DR,
	StateExit1DR:   StateUpdateDR,
	StatePauseDR:   StateExit2DR,
	StateExit2DR:   StateUpdateDR,
	StateUpdateDR:  StateSelectDR,
	StateSelectIR:  StateReset,
	StateCaptureIR: StateExit1IR,
	StateShiftIR:   StateExit1IR,
	StateExit1IR:   StateUpdateIR,
	StatePauseIR:   StateExit2IR,
	StateExit2IR:   StateUpdateIR,
	StateUpdateIR:  StateSelectDR,
}

// stableIndex orders the six stable states for the path table.
var stableIndex = map[State]int{
	StateReset:   0,
	StateIdle:    1,
	StateShiftDR: 2,
	StatePauseDR: 3,
	StateShiftIR: 4,
	StatePauseIR: 5,
}

// tmsPaths[from][to], LSB transmitted first.
var tmsPaths = [6][6]Path{
	{ // from RESET
		{0x7F, 7}, // RESET
		{0x00, 1}, // IDLE
		{0x02, 4}, // DRSHIFT
		{0x0A, 5}, // DRPAUSE
		{0x06, 5}, // IRSHIFT
		{0x16, 6}, // IRPAUSE
	},
	{ // from IDLE
		{0x07, 3}, // RESET
		{0x00, 0}, // IDLE
		{0x01, 3}, // DRSHIFT
		{0x05, 4}, // DRPAUSE
		{0x03, 4}, // IRSHIFT
		{0x0B, 5}, // IRPAUSE
	},
	{ // from DRSHIFT
		{0x1F, 5}, // RESET
		{0x03, 3}, // IDLE
		{0x00, 0}, // DRSHIFT
		{0x01, 2}, // DRPAUSE
		{0x0F, 6}, // IRSHIFT
		{0x2F, 7}, // IRPAUSE
	},
	{ // from DRPAUSE
		{0x1F, 5}, // RESET
		{0x03, 3}, // IDLE
		{0x01, 2}, // DRSHIFT
		{0x00, 0}, // DRPAUSE
		{0x0F, 6}, // IRSHIFT
		{0x2F, 7}, // IRPAUSE
	},
	{ // from IRSHIFT
		{0x1F, 5}, // RESET
		{0x03, 3}, // IDLE
		{0x07, 5}, // DRSHIFT
		{0x17, 6}, // DRPAUSE
		{0x00, 0}, // IRSHIFT
		{0x01, 2}, // IRPAUSE
	},
	{ // from IRPAUSE
		{0x1F, 5}, // RESET
		{0x03, 3}, // IDLE
		{0x07, 5}, // DRSHIFT
		{0x17, 6}, // DRPAUSE
		{0x01, 2}, // IRSHIFT
		{0x00, 0}, // IRPAUSE
	},
}

func (StandardOracle) IsStable(s State) bool {
	return s.Stable()
}

func (StandardOracle) TMSPath(from, to State) (Path, error) {
	fi, ok := stableIndex[from]
	if !ok {
		return Path{}, fmt.Errorf("tap: %s is not a stable state", from)
	}
	ti, ok := stableIndex[to]
	if !ok {
		return Path{}, fmt.Errorf("tap: %s is not a stable state", to)
	}
	return tmsPaths[fi][ti], nil
}

func (StandardOracle) NextState(from State, tms bool) State {
	if from > StateUpdateIR {
		return StateInvalid
	}
	if tms {
		return next1[from]
	}
	return next0[from]
}
