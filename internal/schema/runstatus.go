package schema

// RunStatus is the lifecycle state of a run. All paths between created and
// the terminal states pass through active.
type RunStatus string

const (
	RunStatusCreated       RunStatus = "created"
	RunStatusActive        RunStatus = "active"
	RunStatusAwaitingInput RunStatus = "awaiting_input"
	RunStatusComplete      RunStatus = "complete"
	RunStatusError         RunStatus = "error"
	RunStatusStopped       RunStatus = "stopped"
	RunStatusTimeout       RunStatus = "timeout"
)

// Valid reports whether s is a known status value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusCreated, RunStatusActive, RunStatusAwaitingInput,
		RunStatusComplete, RunStatusError, RunStatusStopped, RunStatusTimeout:
		return true
	}
	return false
}

// Terminal reports whether s is a final state. Terminal runs accept no
// further transitions.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusComplete, RunStatusError, RunStatusStopped, RunStatusTimeout:
		return true
	}
	return false
}

// RunEvent drives the run state machine. Outcome is set only on finish
// events and names the terminal state to enter.
type RunEvent struct {
	Name    string    `json:"name"`
	Outcome RunStatus `json:"outcome,omitempty"`
}

var (
	EventStart         = RunEvent{Name: "start"}
	EventPauseForInput = RunEvent{Name: "pause_for_input"}
	EventResume        = RunEvent{Name: "resume"}
)

// EventFinish builds a finish event targeting the given terminal outcome.
func EventFinish(outcome RunStatus) RunEvent {
	return RunEvent{Name: "finish", Outcome: outcome}
}

// Transition applies event to current and returns the next status, or an
// InvalidTransitionError if the event is not legal in the current state.
// Terminal states are locked: every event fails once a run has finished.
func Transition(current RunStatus, event RunEvent) (RunStatus, error) {
	if current.Terminal() {
		return "", &InvalidTransitionError{Current: current, Event: event}
	}

	switch event.Name {
	case "start":
		if current == RunStatusCreated {
			return RunStatusActive, nil
		}
	case "pause_for_input":
		if current == RunStatusActive {
			return RunStatusAwaitingInput, nil
		}
	case "resume":
		if current == RunStatusAwaitingInput {
			return RunStatusActive, nil
		}
	case "finish":
		if (current == RunStatusActive || current == RunStatusAwaitingInput) && event.Outcome.Terminal() {
			return event.Outcome, nil
		}
	}
	return "", &InvalidTransitionError{Current: current, Event: event}
}
