// Package climate holds the sensor data model and the condition
// classifier: readings, frames, thresholds and the pure functions that
// turn a frame into a classified system condition.
package climate
