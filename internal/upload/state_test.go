package upload

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestAttempt_Transitions(t *testing.T) {
	a := newAttempt("l1")
	for _, next := range []State{StateValidating, StateUploading, StateSucceeded} {
		if err := a.advance(next); err != nil {
			t.Fatalf("advance(%s) error = %v", next, err)
		}
	}
	if !a.State.Terminal() {
		t.Error("succeeded should be terminal")
	}

	a = newAttempt("l1")
	a.advance(StateValidating)
	if err := a.advance(StateRejected); err != nil {
		t.Fatalf("advance(rejected) error = %v", err)
	}
	if err := a.advance(StateUploading); err == nil {
		t.Error("rejected attempt must not start uploading")
	}

	a = newAttempt("l1")
	a.advance(StateValidating)
	a.advance(StateUploading)
	if err := a.fail(ReasonTimeout); err != nil {
		t.Fatalf("fail() error = %v", err)
	}
	if a.State != StateFailed || a.Reason != ReasonTimeout {
		t.Errorf("attempt = %+v", a)
	}
}

func TestAttempt_InvalidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{StateIdle, StateUploading},
		{StateIdle, StateSucceeded},
		{StateValidating, StateSucceeded},
		{StateUploading, StateRejected},
		{StateFailed, StateUploading},
	}
	for _, tt := range tests {
		a := &Attempt{State: tt.from}
		if err := a.advance(tt.to); err == nil {
			t.Errorf("%s -> %s should be rejected", tt.from, tt.to)
		}
	}
}

func TestTransition_LogsRefusedMove(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	a := newAttempt("l1")
	transition(logger, a, StateValidating)
	if buf.Len() != 0 {
		t.Fatalf("valid transition logged: %s", buf.String())
	}

	transition(logger, a, StateSucceeded)
	if a.State != StateValidating {
		t.Errorf("State = %q, refused move must not change it", a.State)
	}
	if !strings.Contains(buf.String(), "validating -> succeeded") {
		t.Errorf("log = %q, want refused transition", buf.String())
	}

	buf.Reset()
	failAttempt(logger, a, ReasonTimeout)
	if a.Reason != "" || !strings.Contains(buf.String(), "validating -> failed") {
		t.Errorf("attempt = %+v, log = %q", a, buf.String())
	}
}
