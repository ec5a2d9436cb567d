package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
)

// Operations that touch remote data and then local state run as a fixed
// pipeline: Validate → Perform → Verify → Archive → Respond.
//
// Local state is only written in Archive, after Verify accepted what Perform
// produced. A failed fetch therefore never leaves the collection half replaced.

// ExecutionStep names one stage of the pipeline.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepArchive  ExecutionStep = "archive"
	StepRespond  ExecutionStep = "respond"
)

// ExecutionError records the stage an operation failed in.
type ExecutionError struct {
	Step  ExecutionStep
	Cause error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Cause)
}

// Unwrap exposes the cause so domain checks (IsTransientNetwork, ...) still work.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Executor runs operations and logs each stage.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor returns an executor; a nil logger falls back to slog.Default.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{logger: logger}
}

// Operation bundles the stage functions. Nil stages are skipped.
//
// I is the input, P what Perform produced, V the verified value that Archive
// persists, O the caller-facing result.
type Operation[I, P, V, O any] struct {
	Name string

	Validate func(ctx context.Context, input I) error
	Perform  func(ctx context.Context, input I) (P, error)
	Verify   func(ctx context.Context, input I, performed P) (V, error)
	Archive  func(ctx context.Context, input I, verified V) error
	Respond  func(ctx context.Context, input I, verified V) (O, error)
}

// runStep executes one stage with uniform logging and error wrapping.
func runStep[T any](ctx context.Context, logger *slog.Logger, step ExecutionStep, fn func() (T, error)) (T, error) {
	logger.Log(ctx, logging.LevelTrace, "step started", slog.String("step", string(step)))

	out, err := fn()
	if err != nil {
		level := slog.LevelError
		if step == StepValidate || step == StepRespond {
			level = slog.LevelWarn
		}

		logger.Log(ctx, level, "step failed",
			slog.String("step", string(step)),
			slog.Any("error", err),
		)

		var zero T

		return zero, &ExecutionError{Step: step, Cause: err}
	}

	logger.Log(ctx, logging.LevelTrace, "step finished", slog.String("step", string(step)))

	return out, nil
}

// Execute runs op over input.
func Execute[I, P, V, O any](ctx context.Context, exec *Executor, op Operation[I, P, V, O], input I) (O, error) {
	var zero O

	logger := exec.logger
	if ctxLogger, ok := logging.Lookup(ctx); ok {
		logger = ctxLogger
	}

	logger = logger.With(slog.String("operation", op.Name))
	start := time.Now()

	if op.Validate != nil {
		_, err := runStep(ctx, logger, StepValidate, func() (struct{}, error) {
			return struct{}{}, op.Validate(ctx, input)
		})
		if err != nil {
			return zero, err
		}
	}

	var performed P

	if op.Perform != nil {
		var err error

		performed, err = runStep(ctx, logger, StepPerform, func() (P, error) {
			return op.Perform(ctx, input)
		})
		if err != nil {
			return zero, err
		}
	}

	var verified V

	if op.Verify != nil {
		var err error

		verified, err = runStep(ctx, logger, StepVerify, func() (V, error) {
			return op.Verify(ctx, input, performed)
		})
		if err != nil {
			return zero, err
		}
	}

	if op.Archive != nil {
		_, err := runStep(ctx, logger, StepArchive, func() (struct{}, error) {
			return struct{}{}, op.Archive(ctx, input, verified)
		})
		if err != nil {
			return zero, err
		}
	}

	result := zero

	if op.Respond != nil {
		var err error

		result, err = runStep(ctx, logger, StepRespond, func() (O, error) {
			return op.Respond(ctx, input, verified)
		})
		if err != nil {
			return zero, err
		}
	}

	logger.DebugContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return result, nil
}

// GetExecutionStep reports the stage an error came from.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Step, true
	}

	return "", false
}
