package libemit

import "github.com/sirupsen/logrus"

type logrusLogger struct {
	*logrus.Entry
}

// NewLogrusLogger adapts a logrus entry. A nil entry falls back to the
// logrus standard logger.
func NewLogrusLogger(entry *logrus.Entry) Logger {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	return logrusLogger{Entry: entry}
}

func (l logrusLogger) WithField(key string, value any) Logger {
	return logrusLogger{Entry: l.Entry.WithField(key, value)}
}
