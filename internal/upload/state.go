package upload

import (
	"fmt"
	"log/slog"
)

// State is a step of one upload attempt:
// idle -> validating -> rejected, or validating -> uploading -> succeeded | failed.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateRejected   State = "rejected"
	StateUploading  State = "uploading"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var transitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateRejected, StateUploading},
	StateUploading:  {StateSucceeded, StateFailed},
}

func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s State) canMoveTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Attempt tracks one upload through its states.
type Attempt struct {
	LessonID string
	State    State
	Reason   FailureReason
}

func newAttempt(lessonID string) *Attempt {
	return &Attempt{LessonID: lessonID, State: StateIdle}
}

func (a *Attempt) advance(next State) error {
	if !a.State.canMoveTo(next) {
		return fmt.Errorf("invalid upload transition %s -> %s", a.State, next)
	}
	a.State = next
	return nil
}

func (a *Attempt) fail(reason FailureReason) error {
	if err := a.advance(StateFailed); err != nil {
		return err
	}
	a.Reason = reason
	return nil
}

func transition(logger *slog.Logger, a *Attempt, next State) {
	if err := a.advance(next); err != nil {
		logger.Error("upload state transition refused", "lesson_id", a.LessonID, "error", err)
	}
}

func failAttempt(logger *slog.Logger, a *Attempt, reason FailureReason) {
	if err := a.fail(reason); err != nil {
		logger.Error("upload state transition refused", "lesson_id", a.LessonID, "reason", reason, "error", err)
	}
}
