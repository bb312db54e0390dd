package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := log.Out
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(old) })
	return &buf
}

func TestInfo_Success_Warn_Error_WriteTag(t *testing.T) {
	buf := captureLog(t)

	Info("TAG", "info message")
	Success("TAG", "success message")
	Warn("TAG", "warn message")
	Error("TAG", "error message")

	out := buf.String()
	for _, want := range []string{"tag=TAG", "info message", "success message", "warn message", "error message"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSetLevel_FiltersInfo(t *testing.T) {
	buf := captureLog(t)
	defer log.SetLevel(logrus.InfoLevel)

	SetLevel("warn")
	Info("TAG", "hidden")
	Warn("TAG", "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn line missing")
	}
}

func TestSetLevel_UnknownIgnored(t *testing.T) {
	before := log.GetLevel()
	SetLevel("nope")
	if log.GetLevel() != before {
		t.Errorf("level changed to %v", log.GetLevel())
	}
}
