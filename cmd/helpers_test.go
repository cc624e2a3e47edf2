package cmd

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/Saijash84/CalMate/internal/assistant"
	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/config"
)

var refNow = time.Date(2024, time.June, 8, 9, 0, 0, 0, time.UTC)

const syncMessage = "Book a meeting titled 'Sync' on 2024-06-10 at 10:00 for 30 minutes"

func init() {
	color.NoColor = true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns the default configuration with bookings kept in memory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	vp := config.New()
	vp.Set("store.path", "")
	cfg, err := config.Load(vp, "")
	require.NoError(t, err)
	return cfg
}

func newTestAssistant(t *testing.T) (*assistant.Assistant, booking.Store) {
	t.Helper()
	store, err := booking.OpenBadger("", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	asst, err := assistant.New(assistant.Config{
		Store:    store,
		Sessions: assistant.NewMemorySessionStore(10, time.Hour),
		Clock:    func() time.Time { return refNow },
		Logger:   discardLogger(),
	})
	require.NoError(t, err)
	return asst, store
}
