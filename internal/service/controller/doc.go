// Package controller implements the automatic setpoint control loop:
// periodic sensor evaluation, condition classification, action selection
// with cooldown suppression, and best-effort actuation with durable
// cooldown state.
package controller
