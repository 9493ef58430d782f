package schema

import (
	"errors"
	"testing"
)

func TestRunLifecycle(t *testing.T) {
	status := RunStatusCreated
	steps := []struct {
		event RunEvent
		want  RunStatus
	}{
		{EventStart, RunStatusActive},
		{EventPauseForInput, RunStatusAwaitingInput},
		{EventResume, RunStatusActive},
		{EventFinish(RunStatusComplete), RunStatusComplete},
	}

	for _, step := range steps {
		next, err := Transition(status, step.event)
		if err != nil {
			t.Fatalf("event %q in %q: %v", step.event.Name, status, err)
		}
		if next != step.want {
			t.Errorf("event %q: expected %q, got %q", step.event.Name, step.want, next)
		}
		status = next
	}

	// Terminal lock: nothing moves a completed run.
	for _, ev := range []RunEvent{EventStart, EventPauseForInput, EventResume, EventFinish(RunStatusStopped)} {
		if _, err := Transition(status, ev); err == nil {
			t.Errorf("expected terminal lock for event %q", ev.Name)
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		current RunStatus
		event   RunEvent
	}{
		{RunStatusCreated, EventResume},
		{RunStatusCreated, EventPauseForInput},
		{RunStatusCreated, EventFinish(RunStatusComplete)},
		{RunStatusActive, EventStart},
		{RunStatusActive, EventResume},
		{RunStatusAwaitingInput, EventPauseForInput},
		{RunStatusActive, EventFinish(RunStatusActive)}, // finish must target a terminal state
		{RunStatusComplete, EventResume},
	}

	for _, tt := range tests {
		_, err := Transition(tt.current, tt.event)
		var it *InvalidTransitionError
		if !errors.As(err, &it) {
			t.Errorf("%q in %q: expected InvalidTransitionError, got %v", tt.event.Name, tt.current, err)
			continue
		}
		if it.Current != tt.current {
			t.Errorf("error reports state %q, expected %q", it.Current, tt.current)
		}
	}
}

func TestFinishReachesEveryTerminalState(t *testing.T) {
	for _, outcome := range []RunStatus{RunStatusComplete, RunStatusError, RunStatusStopped, RunStatusTimeout} {
		next, err := Transition(RunStatusActive, EventFinish(outcome))
		if err != nil {
			t.Errorf("finish(%s): %v", outcome, err)
			continue
		}
		if next != outcome {
			t.Errorf("finish(%s): got %q", outcome, next)
		}
		if !next.Terminal() {
			t.Errorf("%q should be terminal", next)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if RunStatus("paused").Valid() {
		t.Error("'paused' should not be a valid status")
	}
	if !RunStatusAwaitingInput.Valid() {
		t.Error("awaiting_input should be valid")
	}
}
