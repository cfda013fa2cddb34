// Package logger provides the process-wide zap sugared logger and
// context helpers for named, per-service logging.
package logger
