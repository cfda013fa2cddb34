// Package fake provides an in-memory Actuator for tests: scripted point
// values, per-point failure injection and full call recording, with zero
// I/O.
package fake

import (
	"context"
	"sync"

	"github.com/mholen/hvacctl/internal/actuator"
)

// Call records one operation issued against the fake.
type Call struct {
	Op     string
	Point  string
	Value  string
	DryRun bool
}

// Actuator is a scripted in-memory implementation of actuator.Actuator.
// The zero value is usable; all fields may be mutated between calls.
type Actuator struct {
	mu sync.Mutex

	// values holds the current readable value per point.
	values map[string]string
	// units holds an optional display unit per point.
	units map[string]string
	// failures maps a point to a failure message returned by every
	// operation against it.
	failures map[string]string
	// failuresLeft maps a point to a number of initial attempts that
	// fail before the point starts succeeding, for retry tests.
	failuresLeft map[string]int
	// forced tracks committed overrides per point.
	forced map[string]string
	// calls records every operation in order.
	calls []Call
}

// New returns an empty fake actuator.
func New() *Actuator {
	return &Actuator{
		values:       make(map[string]string),
		units:        make(map[string]string),
		failures:     make(map[string]string),
		failuresLeft: make(map[string]int),
		forced:       make(map[string]string),
	}
}

// SetValue scripts the value a point reads back.
func (a *Actuator) SetValue(point, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.values[point] = value
}

// SetUnit scripts the display unit a point reports.
func (a *Actuator) SetUnit(point, unit string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.units[point] = unit
}

// FailPoint makes every operation against the point fail with the message.
func (a *Actuator) FailPoint(point, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.failures[point] = message
}

// FailPointTimes makes the next n operations against the point fail with
// the message, then succeed.
func (a *Actuator) FailPointTimes(point, message string, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.failures[point] = message
	a.failuresLeft[point] = n
}

// Calls returns a copy of every recorded operation.
func (a *Actuator) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Call, len(a.calls))
	copy(out, a.calls)

	return out
}

// ForcedValue reports the committed override for a point, if any.
func (a *Actuator) ForcedValue(point string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	value, ok := a.forced[point]

	return value, ok
}

// Read implements actuator.Actuator.
func (a *Actuator) Read(ctx context.Context, point string) (actuator.Result, error) {
	if err := ctx.Err(); err != nil {
		return actuator.Result{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, Call{Op: "read", Point: point})

	if message, failed := a.shouldFail(point); failed {
		return actuator.Result{Point: point, Message: message}, nil
	}

	_, isForced := a.forced[point]

	return actuator.Result{
		Point:         point,
		ObservedValue: a.values[point],
		Unit:          a.units[point],
		Forced:        isForced,
		Success:       true,
		Message:       "value read",
	}, nil
}

// Force implements actuator.Actuator.
func (a *Actuator) Force(ctx context.Context, point, value string, dryRun bool) (actuator.Result, error) {
	if err := ctx.Err(); err != nil {
		return actuator.Result{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, Call{Op: "force", Point: point, Value: value, DryRun: dryRun})

	if message, failed := a.shouldFail(point); failed {
		return actuator.Result{Point: point, RequestedValue: value, Message: message}, nil
	}

	if dryRun {
		return actuator.Result{
			Point:          point,
			RequestedValue: value,
			Success:        true,
			Message:        "dry run, nothing committed",
			DryRun:         true,
		}, nil
	}

	a.forced[point] = value
	a.values[point] = value

	return actuator.Result{
		Point:          point,
		RequestedValue: value,
		ObservedValue:  value,
		Forced:         true,
		Success:        true,
		Message:        "force applied",
	}, nil
}

// Unforce implements actuator.Actuator.
func (a *Actuator) Unforce(ctx context.Context, point string) (actuator.Result, error) {
	if err := ctx.Err(); err != nil {
		return actuator.Result{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, Call{Op: "unforce", Point: point})

	if message, failed := a.shouldFail(point); failed {
		return actuator.Result{Point: point, Message: message}, nil
	}

	delete(a.forced, point)

	return actuator.Result{
		Point:         point,
		ObservedValue: a.values[point],
		Success:       true,
		Message:       "force released",
	}, nil
}

// shouldFail consumes one scripted failure for the point. Callers must
// hold the mutex.
func (a *Actuator) shouldFail(point string) (string, bool) {
	message, failing := a.failures[point]
	if !failing {
		return "", false
	}

	left, limited := a.failuresLeft[point]
	if !limited {
		return message, true
	}

	if left <= 0 {
		return "", false
	}

	a.failuresLeft[point] = left - 1

	return message, true
}
