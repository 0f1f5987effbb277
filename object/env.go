package object

import (
	"fmt"

	"github.com/wudi/colorkit/observability"
)

// Signal is the kind of notification delivered to observers.
type Signal int

const (
	SignalOK Signal = iota
	SignalConnected
	SignalReleased
	SignalDataChanged
	SignalStorageChanged
	SignalIncompatibleData
	SignalIncompatibleOption
	SignalIncompatibleContext
	SignalIncompleteGraph
	SignalVisited
	SignalUser1
	SignalUser2
	SignalUser3
)

var signalNames = [...]string{
	SignalOK:                  "ok",
	SignalConnected:           "connected",
	SignalReleased:            "released",
	SignalDataChanged:         "data-changed",
	SignalStorageChanged:      "storage-changed",
	SignalIncompatibleData:    "incompatible-data",
	SignalIncompatibleOption:  "incompatible-option",
	SignalIncompatibleContext: "incompatible-context",
	SignalIncompleteGraph:     "incomplete-graph",
	SignalVisited:             "visited",
	SignalUser1:               "user1",
	SignalUser2:               "user2",
	SignalUser3:               "user3",
}

func (s Signal) String() string {
	if s < 0 || int(s) >= len(signalNames) {
		return fmt.Sprintf("signal(%d)", int(s))
	}
	return signalNames[s]
}

// Bus delivers signals. observer.Registry is the implementation.
type Bus interface {
	Emit(model Object, sig Signal, data any) int
	// Detach removes every relationship touching id.
	Detach(id ID)
}

// Severity of a message sent through the message channel.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Message is a structured report about an object.
type Message struct {
	Severity Severity
	Kind     Kind
	ID       ID
	Text     string
}

// MessageFunc receives messages. It replaces the default logger sink.
type MessageFunc func(Message)

// Env is the runtime context shared by a family of objects. A nil *Env is
// valid: signals go nowhere and messages are dropped.
type Env struct {
	Bus      Bus
	Logger   observability.Logger
	Messages MessageFunc
}

// Emit forwards to the bus and returns the number of observers signaled.
func (e *Env) Emit(model Object, sig Signal, data any) int {
	if e == nil || e.Bus == nil {
		return 0
	}
	return e.Bus.Emit(model, sig, data)
}

// Log returns the env logger or a no-op logger.
func (e *Env) Log() observability.Logger {
	if e == nil || e.Logger == nil {
		return observability.NopLogger{}
	}
	return e.Logger
}

// Message reports through the message channel, tagging the text with the
// object's type name and id.
func (e *Env) Message(sev Severity, obj Object, format string, args ...any) {
	if e == nil {
		return
	}
	m := Message{Severity: sev, Text: fmt.Sprintf(format, args...)}
	if obj != nil {
		m.Kind = obj.Kind()
		m.ID = obj.ID()
	}
	if e.Messages != nil {
		e.Messages(m)
		return
	}
	fields := []observability.Field{
		observability.String("type", m.Kind.String()),
		observability.Int64("id", int64(m.ID)),
	}
	switch sev {
	case SeverityDebug:
		e.Log().Debug(m.Text, fields...)
	case SeverityWarn:
		e.Log().Warn(m.Text, fields...)
	default:
		e.Log().Error(m.Text, fields...)
	}
}
