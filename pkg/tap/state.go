package tap

import "fmt"

// State identifies one of the 16 states of the IEEE 1149.1 TAP controller.
type State uint8

const (
	StateReset State = iota
	StateIdle
	StateSelectDR
	StateCaptureDR
	StateShiftDR
	StateExit1DR
	StatePauseDR
	StateExit2DR
	StateUpdateDR
	StateSelectIR
	StateCaptureIR
	StateShiftIR
	StateExit1IR
	StatePauseIR
	StateExit2IR
	StateUpdateIR

	// Invalid is the session state before the first reset.
	StateInvalid State = 0xFF
)

var stateNames = map[State]string{
	StateReset:     "RESET",
	StateIdle:      "IDLE",
	StateSelectDR:  "DRSELECT",
	StateCaptureDR: "DRCAPTURE",
	StateShiftDR:   "DRSHIFT",
	StateExit1DR:   "DREXIT1",
	StatePauseDR:   "DRPAUSE",
	StateExit2DR:   "DREXIT2",
	StateUpdateDR:  "DRUPDATE",
	StateSelectIR:  "IRSELECT",
	StateCaptureIR: "IRCAPTURE",
	StateShiftIR:   "IRSHIFT",
	StateExit1IR:   "IREXIT1",
	StatePauseIR:   "IRPAUSE",
	StateExit2IR:   "IREXIT2",
	StateUpdateIR:  "IRUPDATE",
	StateInvalid:   "INVALID",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Stable reports whether the controller can remain in s indefinitely while
// TCK keeps running. Only stable states are legal end states for a move.
func (s State) Stable() bool {
	switch s {
	case StateReset, StateIdle, StateShiftDR, StatePauseDR, StateShiftIR, StatePauseIR:
		return true
	}
	return false
}
