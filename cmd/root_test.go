package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := newLogger(&buf, "text", false)
		require.NoError(t, err)
		logger.Info("hello", "k", "v")
		logger.Debug("hidden")
		assert.Contains(t, buf.String(), "msg=hello")
		assert.NotContains(t, buf.String(), "hidden")
	})

	t.Run("json with debug", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := newLogger(&buf, "JSON", true)
		require.NoError(t, err)
		logger.Debug("visible")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "visible", record["msg"])
		assert.Equal(t, "DEBUG", record["level"])
	})

	t.Run("empty defaults to text", func(t *testing.T) {
		_, err := newLogger(&bytes.Buffer{}, "", false)
		assert.NoError(t, err)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := newLogger(&bytes.Buffer{}, "xml", false)
		assert.ErrorContains(t, err, "unsupported log format")
	})
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "chat", "bookings", "auth", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "calmate version 1.2.3")
}
