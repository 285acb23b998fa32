// Package audit defines the audit event model, the asynchronous
// structured-log writer, and the small logging seam the rest of the
// module logs through.
package audit

// Logger is the minimal structured-logging contract the module logs
// through, modeled on the teacher's own sql/log façade so every component
// (rule faults, strategy WARN/LOG output, writer overflow) can share one
// seam regardless of which logging library the embedding application
// actually wires in.
type Logger interface {
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	WithError(err error) Logger
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
}

// Discard is a no-op Logger, the default for library consumers and tests
// that don't want logging.
type Discard struct{}

func (Discard) WithField(string, any) Logger     { return Discard{} }
func (Discard) WithFields(map[string]any) Logger { return Discard{} }
func (Discard) WithError(error) Logger           { return Discard{} }
func (Discard) Debug(...any)                     {}
func (Discard) Info(...any)                      {}
func (Discard) Warn(...any)                      {}
func (Discard) Error(...any)                     {}
