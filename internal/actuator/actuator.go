// Package actuator defines the single capability the control core uses
// to touch the remote building-management endpoint: read a point, force
// an override, release an override. Concrete transports live in
// subpackages; the core never learns how a value is physically written.
package actuator

import "context"

// Result is the outcome of one actuation attempt. Remote failures of any
// kind (transport, authentication, endpoint errors) come back uniformly
// as Success=false with a human-readable Message; the error return of the
// Actuator methods is reserved for context cancellation.
type Result struct {
	// Point is the remote point the operation targeted.
	Point string `json:"point"`
	// RequestedValue is the value a force asked for, empty otherwise.
	RequestedValue string `json:"value,omitempty"`
	// ObservedValue is the point value as reported by the endpoint
	// after the operation, when available.
	ObservedValue string `json:"updated_value,omitempty"`
	// Unit is the display unit reported by the endpoint, if any.
	Unit string `json:"unit,omitempty"`
	// Forced reports whether the point carries an override after the
	// operation.
	Forced bool `json:"forced,omitempty"`
	// Success reports whether the operation took effect remotely.
	Success bool `json:"success"`
	// Message describes the outcome, including any failure reason.
	Message string `json:"message"`
	// DryRun marks results of force operations that recorded intent
	// without committing.
	DryRun bool `json:"dry_run,omitempty"`
}

// Actuator is the abstract remote control surface.
type Actuator interface {
	// Read fetches a point's current value. It never mutates remote state.
	Read(ctx context.Context, point string) (Result, error)

	// Force requests a value override. With dryRun set the implementation
	// must record intent without committing anything remotely.
	Force(ctx context.Context, point, value string, dryRun bool) (Result, error)

	// Unforce releases a previously applied override.
	Unforce(ctx context.Context, point string) (Result, error)
}
