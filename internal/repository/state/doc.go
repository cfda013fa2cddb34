// Package state persists the controller's cooldown record between
// cycles and process restarts.
package state
