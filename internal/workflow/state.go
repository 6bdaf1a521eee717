package workflow

// State is the single active workflow state
type State string

const (
	StateIdle           State = "IDLE"
	StateScanning       State = "SCANNING"
	StateSuccess        State = "SUCCESS"
	StateError          State = "ERROR"
	StateViewingHistory State = "VIEWING_HISTORY"
)

// IsValid checks if the state is a known state
func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateScanning, StateSuccess, StateError, StateViewingHistory:
		return true
	default:
		return false
	}
}

func (s State) String() string {
	return string(s)
}

// Trigger is an event that may move the workflow to another state
type Trigger string

const (
	TriggerSelect        Trigger = "SELECT"
	TriggerSucceed       Trigger = "SUCCEED"
	TriggerFail          Trigger = "FAIL"
	TriggerReset         Trigger = "RESET"
	TriggerToggleHistory Trigger = "TOGGLE_HISTORY"
	TriggerOpen          Trigger = "OPEN"
	TriggerDelete        Trigger = "DELETE"
	TriggerClear         Trigger = "CLEAR"
)

func (t Trigger) String() string {
	return string(t)
}

// transitions lists every permitted trigger per state. Toggling out of
// ViewingHistory is resolved at runtime to the state it was entered from.
var transitions = map[State]map[Trigger]State{
	StateIdle: {
		TriggerSelect:        StateScanning,
		TriggerToggleHistory: StateViewingHistory,
	},
	StateScanning: {
		TriggerSucceed: StateSuccess,
		TriggerFail:    StateError,
	},
	StateSuccess: {
		TriggerReset:         StateIdle,
		TriggerToggleHistory: StateViewingHistory,
	},
	StateError: {
		TriggerReset:         StateIdle,
		TriggerToggleHistory: StateViewingHistory,
	},
	StateViewingHistory: {
		TriggerReset:  StateIdle,
		TriggerOpen:   StateSuccess,
		TriggerDelete: StateViewingHistory,
		TriggerClear:  StateViewingHistory,
	},
}

// CanFire reports whether trigger is permitted in state
func CanFire(state State, trigger Trigger) bool {
	if state == StateViewingHistory && trigger == TriggerToggleHistory {
		return true
	}
	_, ok := transitions[state][trigger]
	return ok
}

// PermittedTriggers returns the triggers allowed in state
func PermittedTriggers(state State) []Trigger {
	var out []Trigger
	for _, t := range []Trigger{
		TriggerSelect, TriggerSucceed, TriggerFail, TriggerReset,
		TriggerToggleHistory, TriggerOpen, TriggerDelete, TriggerClear,
	} {
		if CanFire(state, t) {
			out = append(out, t)
		}
	}
	return out
}
