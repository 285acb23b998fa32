package audit

import "github.com/sirupsen/logrus"

// Logrus adapts a *logrus.Logger (or *logrus.Entry) to the Logger
// interface, mirroring the teacher's own sql/log logrus adapter.
type Logrus struct {
	logrus.FieldLogger
}

// NewLogrus wraps fl as a Logger. A nil fl wraps the standard logger.
func NewLogrus(fl logrus.FieldLogger) Logrus {
	if fl == nil {
		fl = logrus.StandardLogger()
	}
	return Logrus{FieldLogger: fl}
}

func (l Logrus) WithField(key string, value any) Logger {
	return Logrus{FieldLogger: l.FieldLogger.WithField(key, value)}
}

func (l Logrus) WithFields(fields map[string]any) Logger {
	return Logrus{FieldLogger: l.FieldLogger.WithFields(logrus.Fields(fields))}
}

func (l Logrus) WithError(err error) Logger {
	return Logrus{FieldLogger: l.FieldLogger.WithError(err)}
}
