package logging

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

// DefaultLogger is the logger used when the caller does not supply its
// own implementation before Init: a thin adapter per level over a
// logrus.Logger, with Debug gated behind a runtime toggle.
type DefaultLogger struct {
	entry *logrus.Logger
	debug bool
}

var levelColor = map[logrus.Level]*color.Color{
	logrus.InfoLevel:  color.New(color.FgCyan),
	logrus.WarnLevel:  color.New(color.FgYellow),
	logrus.ErrorLevel: color.New(color.FgRed),
	logrus.DebugLevel: color.New(color.FgMagenta),
	logrus.FatalLevel: color.New(color.FgRed, color.Bold),
}

type colorizedFormatter struct {
	inner logrus.Formatter
}

func (c *colorizedFormatter) Format(e *logrus.Entry) ([]byte, error) {
	if cl, ok := levelColor[e.Level]; ok {
		e.Message = cl.Sprint(e.Message)
	}
	return c.inner.Format(e)
}

// NewDefaultLogger builds the runtime's default logger, writing to
// stderr through a colorable writer so level-colored output survives on
// Windows consoles as well as plain terminals.
func NewDefaultLogger() *DefaultLogger {
	l := logrus.New()
	l.Out = colorable.NewColorable(os.Stderr)
	l.Formatter = &colorizedFormatter{inner: &logrus.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
	}}
	l.SetLevel(logrus.InfoLevel)
	return &DefaultLogger{entry: l, debug: false}
}

func (l *DefaultLogger) Info(v ...interface{})  { l.entry.Info(v...) }
func (l *DefaultLogger) Infof(f string, v ...interface{}) { l.entry.Infof(f, v...) }
func (l *DefaultLogger) Warn(v ...interface{})  { l.entry.Warn(v...) }
func (l *DefaultLogger) Warnf(f string, v ...interface{}) { l.entry.Warnf(f, v...) }
func (l *DefaultLogger) Error(v ...interface{}) { l.entry.Error(v...) }
func (l *DefaultLogger) Errorf(f string, v ...interface{}) { l.entry.Errorf(f, v...) }

func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		l.entry.Debug(v...)
	}
}

func (l *DefaultLogger) Debugf(f string, v ...interface{}) {
	if l.debug {
		l.entry.Debugf(f, v...)
	}
}

func (l *DefaultLogger) Fatal(v ...interface{}) {
	l.entry.Error(fmt.Sprint(v...))
	os.Exit(1)
}

func (l *DefaultLogger) Fatalf(f string, v ...interface{}) {
	l.entry.Error(fmt.Sprintf(f, v...))
	os.Exit(1)
}

func (l *DefaultLogger) ToggleDebug(value bool) bool {
	l.debug = value
	if value {
		l.entry.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.SetLevel(logrus.InfoLevel)
	}
	return l.debug
}
