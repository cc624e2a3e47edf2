package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saijash84/CalMate/internal/nlu"
)

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore(2, time.Hour)

	ev, err := s.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, ev)

	in := nlu.ContextEvent{BookingID: "b1", Summary: "Sync", Datetime: at(10, 10, 0), DurationMinutes: 30, Timezone: "UTC", Attendees: []string{"Bob"}}
	require.NoError(t, s.Save(ctx, "s1", in))

	ev, err = s.Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, in, *ev)

	// Callers cannot mutate stored state through the returned value.
	ev.Attendees[0] = "Mallory"
	again, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Bob", again.Attendees[0])

	require.NoError(t, s.Delete(ctx, "s1"))
	ev, err = s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestMemorySessionStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore(2, time.Hour)

	require.NoError(t, s.Save(ctx, "a", nlu.ContextEvent{Summary: "A"}))
	require.NoError(t, s.Save(ctx, "b", nlu.ContextEvent{Summary: "B"}))
	_, _ = s.Load(ctx, "a")
	require.NoError(t, s.Save(ctx, "c", nlu.ContextEvent{Summary: "C"}))

	assert.Equal(t, 2, s.Len())
	ev, _ := s.Load(ctx, "b")
	assert.Nil(t, ev)
	ev, _ = s.Load(ctx, "a")
	assert.NotNil(t, ev)
}

func TestMemorySessionStore_Expires(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore(0, time.Minute)
	now := refNow
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, "s1", nlu.ContextEvent{Summary: "Sync"}))
	now = now.Add(59 * time.Second)
	ev, _ := s.Load(ctx, "s1")
	assert.NotNil(t, ev)

	now = now.Add(time.Second)
	ev, _ = s.Load(ctx, "s1")
	assert.Nil(t, ev)
	assert.Equal(t, 0, s.Len())
}

func TestSessionCodec(t *testing.T) {
	data, err := encodeSession(nlu.ContextEvent{Summary: "Sync", Datetime: at(10, 10, 0), DurationMinutes: 45, Timezone: "UTC"})
	require.NoError(t, err)

	ev, err := decodeSession(data)
	require.NoError(t, err)
	assert.Equal(t, "Sync", ev.Summary)
	assert.Equal(t, 45, ev.DurationMinutes)
	assert.True(t, ev.Datetime.Equal(at(10, 10, 0)))
	assert.NotNil(t, ev.Attendees)

	_, err = decodeSession([]byte("{not json"))
	assert.ErrorContains(t, err, "invalid session state")
}

func TestRedisSessionKey(t *testing.T) {
	assert.Equal(t, "calmate:session:abc", redisSessionKey("abc"))
}

func TestConnectRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := ConnectRedis(ctx, "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
