// Package logging provides the leveled logger used across the runtime.
package logging

// Logger is implemented by every leveled logger accepted by the runtime.
// The shape mirrors the logging interface used throughout the object
// model: plain and formatted variants for each level, plus a debug
// toggle so verbose tracing can be enabled without rebuilding.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})

	// ToggleDebug enables or disables Debug/Debugf output and returns
	// the new state.
	ToggleDebug(value bool) bool
}
