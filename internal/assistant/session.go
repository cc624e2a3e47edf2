package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Saijash84/CalMate/internal/nlu"
)

const (
	defaultSessionSize = 1024
	defaultSessionTTL  = 24 * time.Hour

	redisSessionPrefix = "calmate:session:"
)

// SessionStore keeps the last confirmed event of each chat session. Load
// returns nil, nil for unknown or expired sessions.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*nlu.ContextEvent, error)
	Save(ctx context.Context, sessionID string, ev nlu.ContextEvent) error
	Delete(ctx context.Context, sessionID string) error
}

type sessionEntry struct {
	event    nlu.ContextEvent
	storedAt time.Time
}

// MemorySessionStore is a bounded in-process SessionStore. Least recently
// used sessions are evicted first and entries older than the TTL are ignored.
type MemorySessionStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, sessionEntry]
	ttl   time.Duration
	now   func() time.Time
}

// NewMemorySessionStore creates a store holding up to size sessions for ttl.
// Non-positive values fall back to 1024 sessions and 24 hours.
func NewMemorySessionStore(size int, ttl time.Duration) *MemorySessionStore {
	if size <= 0 {
		size = defaultSessionSize
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	// lru.New only fails on a non-positive size.
	cache, _ := lru.New[string, sessionEntry](size)
	return &MemorySessionStore{cache: cache, ttl: ttl, now: time.Now}
}

func (s *MemorySessionStore) Load(_ context.Context, sessionID string) (*nlu.ContextEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache.Get(sessionID)
	if !ok {
		return nil, nil
	}
	if s.now().Sub(entry.storedAt) >= s.ttl {
		s.cache.Remove(sessionID)
		return nil, nil
	}
	ev := entry.event
	ev.Attendees = append([]string{}, entry.event.Attendees...)
	return &ev, nil
}

func (s *MemorySessionStore) Save(_ context.Context, sessionID string, ev nlu.ContextEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.Attendees = append([]string{}, ev.Attendees...)
	s.cache.Add(sessionID, sessionEntry{event: ev, storedAt: s.now()})
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(sessionID)
	return nil
}

// Len returns the number of sessions currently held.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// RedisSessionStore keeps session state in Redis as JSON with a TTL, so
// several calmate processes can share conversations.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore wraps an existing client.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

// ConnectRedis opens a client and verifies it with PING.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func redisSessionKey(sessionID string) string {
	return redisSessionPrefix + sessionID
}

func encodeSession(ev nlu.ContextEvent) ([]byte, error) {
	if ev.Attendees == nil {
		ev.Attendees = []string{}
	}
	return json.Marshal(ev)
}

func decodeSession(data []byte) (*nlu.ContextEvent, error) {
	var ev nlu.ContextEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("invalid session state: %w", err)
	}
	if ev.Attendees == nil {
		ev.Attendees = []string{}
	}
	return &ev, nil
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (*nlu.ContextEvent, error) {
	data, err := s.client.Get(ctx, redisSessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return decodeSession(data)
}

func (s *RedisSessionStore) Save(ctx context.Context, sessionID string, ev nlu.ContextEvent) error {
	data, err := encodeSession(ev)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, redisSessionKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisSessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
