package logging

import "testing"

func TestToggleDebug(t *testing.T) {
	l := NewDefaultLogger()
	if got := l.ToggleDebug(true); !got {
		t.Fatal("toggle on returned false")
	}
	if got := l.ToggleDebug(false); got {
		t.Fatal("toggle off returned true")
	}
}

// The default logger must satisfy the interface every runtime component
// is written against.
func TestDefaultLoggerImplementsLogger(t *testing.T) {
	var _ Logger = NewDefaultLogger()
}
