// Package testutil holds helpers shared by tests. Importing it silences
// logrus unless tests run with -v.
package testutil

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func init() {
	logrus.SetLevel(logrus.TraceLevel)

	// testing.Verbose panics before flags are parsed.
	if !isVerbose() {
		logrus.StandardLogger().Out = io.Discard
	}
}

func isVerbose() bool {
	for _, arg := range os.Args {
		if arg == "-test.v" || strings.HasPrefix(arg, "-test.v=true") {
			return true
		}
	}
	return false
}

// CaptureLogs records every entry written to the standard logger until the
// test completes.
func CaptureLogs(t *testing.T) *test.Hook {
	logger := logrus.StandardLogger()
	original := logger.ReplaceHooks(make(logrus.LevelHooks))
	t.Cleanup(func() {
		logger.ReplaceHooks(original)
	})
	return test.NewLocal(logger)
}

// EntriesWithMessage filters captured entries down to those logged with msg.
func EntriesWithMessage(hook *test.Hook, msg string) []*logrus.Entry {
	var matched []*logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == msg {
			matched = append(matched, entry)
		}
	}
	return matched
}
