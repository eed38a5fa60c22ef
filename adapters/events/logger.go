package events

import (
	"github.com/ThreeDotsLabs/watermill"
	log "github.com/sirupsen/logrus"
)

// LogrusAdapter routes Watermill's internal logging through logrus.
type LogrusAdapter struct {
	entry *log.Entry
}

// NewLogrusAdapter wraps entry; nil uses the standard logger.
func NewLogrusAdapter(entry *log.Entry) *LogrusAdapter {
	if entry == nil {
		entry = log.NewEntry(log.StandardLogger())
	}
	return &LogrusAdapter{entry: entry}
}

func (a *LogrusAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.entry.WithFields(log.Fields(fields)).WithError(err).Error(msg)
}

func (a *LogrusAdapter) Info(msg string, fields watermill.LogFields) {
	a.entry.WithFields(log.Fields(fields)).Info(msg)
}

func (a *LogrusAdapter) Debug(msg string, fields watermill.LogFields) {
	a.entry.WithFields(log.Fields(fields)).Debug(msg)
}

func (a *LogrusAdapter) Trace(msg string, fields watermill.LogFields) {
	a.entry.WithFields(log.Fields(fields)).Trace(msg)
}

func (a *LogrusAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LogrusAdapter{entry: a.entry.WithFields(log.Fields(fields))}
}

var _ watermill.LoggerAdapter = (*LogrusAdapter)(nil)
