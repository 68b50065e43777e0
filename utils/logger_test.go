package utils

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogDebug_OnlyWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	original := InfoLogger
	InfoLogger = log.New(&buf, "INFO: ", 0)
	t.Cleanup(func() {
		InfoLogger = original
		SetVerbose(false)
	})

	LogDebug("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetVerbose(true)
	LogDebug("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}
