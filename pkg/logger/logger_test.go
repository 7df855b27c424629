package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestFieldsAppearInOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New("relay", logrus.InfoLevel)
	log.SetOutput(&buf)

	log.WithField("message_id", "m1").Info("message sent")

	out := buf.String()
	for _, want := range []string{"message sent", "message_id", "m1", "relay"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %s", want, out)
		}
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := New("relay", logrus.InfoLevel)
	log.SetOutput(&buf)

	log.WithError(errors.New("boom")).Warn("sweep failed")

	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("output missing error: %s", buf.String())
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New("relay", logrus.InfoLevel)
	log.SetOutput(&buf)

	log.Debug("noise")

	if strings.Contains(buf.String(), "noise") {
		t.Fatalf("debug emitted at info level: %s", buf.String())
	}
}
