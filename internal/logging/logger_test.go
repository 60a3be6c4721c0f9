package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", &buf).WithFields(F("order_id", "5001"))

	log.Info("metafield created", F("action", "created"))
	log.Error("upsert failed", errors.New("status 500"), F("kind", "remote_upsert_failed"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "metafield created", lines[0]["msg"])
	assert.Equal(t, "5001", lines[0]["order_id"])
	assert.Equal(t, "created", lines[0]["action"])

	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "status 500", lines[1]["error"])
	assert.Equal(t, "5001", lines[1]["order_id"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New("WARN", &buf)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestNopLogger(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.WithFields(F("a", 1)).Error("x", errors.New("y"))
	})
}
