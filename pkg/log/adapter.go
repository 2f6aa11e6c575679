package log

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// BadgerLogrusAdapter implements badger.Logger on top of a logrus Entry.
// Badger's info chatter (compaction, value log replay) is demoted to debug
// so it stays out of normal crawl output.
type BadgerLogrusAdapter struct {
	*logrus.Entry
}

// NewBadgerLogrusAdapter tags entry with component=badger
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry.WithField("component", "badger")}
}

// Badger terminates most messages with a newline; logrus adds its own.
func trim(f string) string { return strings.TrimRight(f, "\n") }

func (l *BadgerLogrusAdapter) Errorf(f string, v ...any)   { l.Entry.Errorf(trim(f), v...) }
func (l *BadgerLogrusAdapter) Warningf(f string, v ...any) { l.Entry.Warnf(trim(f), v...) }
func (l *BadgerLogrusAdapter) Infof(f string, v ...any)    { l.Entry.Debugf(trim(f), v...) }
func (l *BadgerLogrusAdapter) Debugf(f string, v ...any)   { l.Entry.Tracef(trim(f), v...) }
