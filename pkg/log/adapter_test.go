package log

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHookedAdapter(level logrus.Level) (*BadgerLogrusAdapter, *test.Hook) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(level)
	hook := test.NewLocal(logger)
	return NewBadgerLogrusAdapter(logrus.NewEntry(logger)), hook
}

func TestBadgerLogrusAdapter_Levels(t *testing.T) {
	tests := []struct {
		name     string
		log      func(a *BadgerLogrusAdapter)
		expected logrus.Level
	}{
		{"error", func(a *BadgerLogrusAdapter) { a.Errorf("disk %s\n", "full") }, logrus.ErrorLevel},
		{"warning", func(a *BadgerLogrusAdapter) { a.Warningf("slow %d\n", 42) }, logrus.WarnLevel},
		{"info demoted", func(a *BadgerLogrusAdapter) { a.Infof("replaying\n") }, logrus.DebugLevel},
		{"debug demoted", func(a *BadgerLogrusAdapter) { a.Debugf("compaction") }, logrus.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, hook := newHookedAdapter(logrus.TraceLevel)
			tt.log(adapter)

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, tt.expected, entry.Level)
			assert.Equal(t, "badger", entry.Data["component"])
			assert.NotContains(t, entry.Message, "\n")
		})
	}
}

func TestBadgerLogrusAdapter_InfoHiddenAtInfoLevel(t *testing.T) {
	adapter, hook := newHookedAdapter(logrus.InfoLevel)

	adapter.Infof("Replaying file id: %d", 1)
	assert.Empty(t, hook.AllEntries())

	adapter.Warningf("value log almost full")
	assert.Len(t, hook.AllEntries(), 1)
}

func TestTrim(t *testing.T) {
	assert.Equal(t, "message", trim("message\n\n"))
	assert.Equal(t, "message", trim("message"))
	assert.Equal(t, "", trim("\n"))
}
