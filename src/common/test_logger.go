package common

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestLogLevel is the level used by NewTestEntry callers that don't care.
const TestLogLevel = logrus.InfoLevel

// This can be used as the destination for a logger and it'll
// map them into calls to testing.T.Log, so that you only see
// the logging for failed tests. Writes after the test has finished are
// dropped: testing.T panics on Log calls from lingering goroutines.
type testLoggerAdapter struct {
	t      testing.TB
	prefix string

	l    sync.RWMutex
	done bool
}

func (a *testLoggerAdapter) finish() {
	a.l.Lock()
	defer a.l.Unlock()
	a.done = true
}

func (a *testLoggerAdapter) Write(d []byte) (int, error) {
	a.l.RLock()
	defer a.l.RUnlock()

	n := len(d)
	if a.done {
		return n, nil
	}
	if n > 0 && d[n-1] == '\n' {
		d = d[:n-1]
	}
	if a.prefix != "" {
		a.t.Log(a.prefix + ": " + string(d))
		return n, nil
	}
	a.t.Log(string(d))
	return n, nil
}

// NewTestLogger returns a logrus Logger that writes through t.Log.
func NewTestLogger(t testing.TB, level logrus.Level) *logrus.Logger {
	adapter := &testLoggerAdapter{t: t}
	t.Cleanup(adapter.finish)

	logger := logrus.New()
	logger.Out = adapter
	logger.Level = level
	return logger
}

// NewTestEntry returns a logrus Entry that writes through t.Log, with the
// prefix field set like production loggers.
func NewTestEntry(t testing.TB, level logrus.Level) *logrus.Entry {
	return NewTestLogger(t, level).WithField("prefix", "test")
}
