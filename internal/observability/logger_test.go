package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pushgate/apns/internal/testutil/testlog"
)

func TestInitLoggerKeepsConfiguredProfile(t *testing.T) {
	testlog.Start(t)
	level := zerolog.GlobalLevel()

	logger := InitLogger("apnstest")

	if zerolog.GlobalLevel() != level {
		t.Fatalf("global level changed: %v -> %v", level, zerolog.GlobalLevel())
	}
	var buf bytes.Buffer
	bufLogger := logger.Output(&buf)
	bufLogger.Info().Msg("started")
	if !strings.Contains(buf.String(), "apnstest") {
		t.Fatalf("app field missing from log output: %s", buf.String())
	}
}
