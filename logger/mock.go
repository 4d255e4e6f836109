package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger records log calls so tests can assert that a component reported an event,
// for example a rejected handshake or a failed heartbeat.
//
// Level methods are registered under their names ("Debug", "Info", ...) with two
// arguments: the message and the key/value slice.
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

// NewMockLogger returns a MockLogger without expectations; unexpected calls panic.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// AllowAll accepts any call at every level, so tests only state the calls they care about.
// Child loggers created by With return the mock itself.
func (m *MockLogger) AllowAll() *MockLogger {
	for _, level := range []string{"Debug", "Info", "Warn", "Error"} {
		m.On(level, mock.Anything, mock.Anything).Maybe()
	}
	m.On("With", mock.Anything).Return(m).Maybe()

	return m
}

func (m *MockLogger) record(level, msg string, keysAndValues []any) {
	m.MethodCalled(level, msg, keysAndValues)
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) { m.record("Debug", msg, keysAndValues) }
func (m *MockLogger) Info(msg string, keysAndValues ...any)  { m.record("Info", msg, keysAndValues) }
func (m *MockLogger) Warn(msg string, keysAndValues ...any)  { m.record("Warn", msg, keysAndValues) }
func (m *MockLogger) Error(msg string, keysAndValues ...any) { m.record("Error", msg, keysAndValues) }

// Fatal is recorded like the other levels; it never exits.
func (m *MockLogger) Fatal(msg string, keysAndValues ...any) { m.record("Fatal", msg, keysAndValues) }

func (m *MockLogger) SetLevel(level LogLevel) {
	m.MethodCalled("SetLevel", level)
}

func (m *MockLogger) Level() LogLevel {
	return m.MethodCalled("Level").Get(0).(LogLevel)
}

// With returns the Logger configured with On("With", ...).Return(child).
// The key/values are passed as one slice argument.
func (m *MockLogger) With(keyValues ...any) Logger {
	return m.MethodCalled("With", keyValues).Get(0).(Logger)
}
