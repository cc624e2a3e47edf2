package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Saijash84/CalMate/internal/instrumentation"
	"github.com/Saijash84/CalMate/internal/logging"
)

// SessionHeader carries the chat session id on HTTP requests and responses.
const SessionHeader = "X-Session-ID"

// maxSessionIDLength bounds client supplied session ids.
const maxSessionIDLength = 128

// sessionInfo tracks session metadata for cleanup
type sessionInfo struct {
	lastAccess time.Time
}

// SessionTracker keeps the set of live chat sessions. Sessions idle for
// longer than the timeout are dropped by a background sweep and reported to
// the expiry callback, which typically clears the assistant's session state.
type SessionTracker struct {
	sessions       map[string]*sessionInfo
	mu             sync.Mutex
	cleanupTicker  *time.Ticker
	cleanupDone    chan struct{}
	stopOnce       sync.Once
	sessionTimeout time.Duration
	metrics        *instrumentation.Metrics
	onExpire       func(sessionID string)
	logger         *slog.Logger
	now            func() time.Time
}

// NewSessionTracker creates a tracker and starts its sweep. onExpire may be nil.
func NewSessionTracker(timeout time.Duration, metrics *instrumentation.Metrics, logger *slog.Logger, onExpire func(string)) *SessionTracker {
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	interval := 10 * time.Minute
	if timeout < interval {
		interval = timeout
	}

	t := &SessionTracker{
		sessions:       make(map[string]*sessionInfo),
		cleanupTicker:  time.NewTicker(interval),
		cleanupDone:    make(chan struct{}),
		sessionTimeout: timeout,
		metrics:        metrics,
		onExpire:       onExpire,
		logger:         logging.WithService(logger, "sessions"),
		now:            time.Now,
	}
	go t.cleanupExpiredSessions()
	return t
}

// ResolveSessionID returns the session id named by the request header or the
// "session" query parameter, or a fresh id when neither is usable.
func (t *SessionTracker) ResolveSessionID(r *http.Request) string {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		id = r.URL.Query().Get("session")
	}
	return NormalizeSessionID(id)
}

// NormalizeSessionID keeps a usable client id and otherwise generates one.
func NormalizeSessionID(id string) string {
	if id == "" || len(id) > maxSessionIDLength {
		return uuid.NewString()
	}
	return id
}

// Touch records activity on a session and reports whether it was new.
func (t *SessionTracker) Touch(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if info, ok := t.sessions[sessionID]; ok {
		info.lastAccess = t.now()
		return false
	}
	t.sessions[sessionID] = &sessionInfo{lastAccess: t.now()}
	t.metrics.IncrementActiveSessions(context.Background())
	return true
}

// RemoveSession forgets a session without invoking the expiry callback.
func (t *SessionTracker) RemoveSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[sessionID]; ok {
		delete(t.sessions, sessionID)
		t.metrics.DecrementActiveSessions(context.Background())
	}
}

// Len returns the number of live sessions.
func (t *SessionTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// expire drops sessions idle past the timeout and returns their ids.
func (t *SessionTracker) expire() []string {
	t.mu.Lock()
	now := t.now()
	var expired []string
	for sessionID, info := range t.sessions {
		if now.Sub(info.lastAccess) > t.sessionTimeout {
			delete(t.sessions, sessionID)
			t.metrics.DecrementActiveSessions(context.Background())
			expired = append(expired, sessionID)
		}
	}
	t.mu.Unlock()

	if t.onExpire != nil {
		for _, id := range expired {
			t.onExpire(id)
		}
	}
	return expired
}

// cleanupExpiredSessions periodically removes expired sessions
func (t *SessionTracker) cleanupExpiredSessions() {
	for {
		select {
		case <-t.cleanupTicker.C:
			if expired := t.expire(); len(expired) > 0 {
				t.logger.Info("cleaned up expired sessions", "count", len(expired))
			}
		case <-t.cleanupDone:
			return
		}
	}
}

// Stop stops the session cleanup goroutine. It is safe to call more than once.
func (t *SessionTracker) Stop() {
	t.stopOnce.Do(func() {
		t.cleanupTicker.Stop()
		close(t.cleanupDone)
	})
}
