package orchestrator

import (
	"blogsmith/internal/core"
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned before any network call when a request
	// cannot run.
	ErrValidation = errors.New("invalid request")
	// ErrAlreadyRunning is returned when a run is already active.
	ErrAlreadyRunning = errors.New("generation already running")
	// ErrCancelled is returned when the user stopped the run.
	ErrCancelled = errors.New("generation cancelled")
	// ErrNoTopics is returned when no generated title passes the filters.
	ErrNoTopics = errors.New("no usable topics")
)

// StageError is a failure inside one stage.
type StageError struct {
	Stage core.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// retryable reports whether the flow may re-run from the failed stage.
func retryable(err error) bool {
	if errors.Is(err, ErrCancelled) {
		return false
	}
	var se *StageError
	if !errors.As(err, &se) {
		return false
	}
	return se.Stage == core.StageGeneratingTopics || se.Stage == core.StageGeneratingArticle
}

// failedStage returns the stage an error came from, idle when unknown.
func failedStage(err error) core.Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return core.StageIdle
}
