package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Saijash84/CalMate/internal/assistant"
	"github.com/Saijash84/CalMate/internal/availability"
	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/logging"
	"github.com/Saijash84/CalMate/internal/nlu"
)

const (
	// DefaultAPIAddr is the default address for the chat API.
	DefaultAPIAddr = ":8080"

	// DefaultAPIReadTimeout bounds reading a request.
	DefaultAPIReadTimeout = 30 * time.Second

	// DefaultAPIWriteTimeout bounds writing a response.
	DefaultAPIWriteTimeout = 30 * time.Second

	// maxFrameBytes bounds one websocket turn.
	maxFrameBytes = 64 << 10

	// streamIdleTimeout closes websocket connections without traffic.
	streamIdleTimeout = 10 * time.Minute

	// maxSlotWindow bounds the free-slot walk exposed over HTTP.
	maxSlotWindow = 14 * 24 * time.Hour
)

// APIConfig configures the chat API.
type APIConfig struct {
	Addr string

	// CORSOrigins lists allowed browser origins. Empty allows all.
	CORSOrigins []string

	// RateLimit is the number of requests per minute per client. Zero disables limiting.
	RateLimit int
	RateBurst int

	// Debug puts gin in debug mode.
	Debug bool
}

// ChatRequest is the body of POST /v1/chat and each inbound websocket frame.
type ChatRequest struct {
	SessionID string        `json:"session_id,omitempty"`
	Message   string        `json:"message" binding:"required"`
	History   []nlu.Message `json:"history,omitempty"`
}

// ChatResponse wraps the assistant reply with the session it belongs to.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	assistant.Response
}

// SlotsResponse is the body of GET /v1/slots.
type SlotsResponse struct {
	Start    time.Time               `json:"start"`
	End      time.Time               `json:"end"`
	Duration int                     `json:"duration_minutes"`
	Slots    []availability.Interval `json:"slots"`
}

// APIServer is the HTTP and websocket front end of the assistant.
type APIServer struct {
	sc         *ServerContext
	sessions   *SessionTracker
	health     *HealthChecker
	limiter    *RateLimiter
	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader
	addr       string

	// streams tracks open websocket connections so Shutdown can close them.
	streams   map[*websocket.Conn]struct{}
	streamsMu sync.Mutex
	wg        sync.WaitGroup
}

// NewAPIServer creates the chat API. sessions and health may be nil; fresh
// ones are created.
func NewAPIServer(sc *ServerContext, sessions *SessionTracker, health *HealthChecker, cfg APIConfig) *APIServer {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAPIAddr
	}
	if sessions == nil {
		sessions = NewSessionTracker(0, sc.Metrics(), sc.Logger(), nil)
	}
	if health == nil {
		health = NewHealthChecker(sc)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", SessionHeader}
	corsConfig.ExposeHeaders = []string{SessionHeader}
	corsConfig.AllowWebSockets = true
	engine.Use(cors.New(corsConfig))

	s := &APIServer{
		sc:       sc,
		sessions: sessions,
		health:   health,
		limiter:  NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		engine:   engine,
		addr:     cfg.Addr,
		streams:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.CORSOrigins),
		},
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: DefaultAPIReadTimeout,
		WriteTimeout:      DefaultAPIWriteTimeout,
	}
	return s
}

func (s *APIServer) setupRoutes() {
	s.engine.GET("/healthz", gin.WrapH(s.health.LivenessHandler()))
	s.engine.GET("/readyz", gin.WrapH(s.health.ReadinessHandler()))
	s.engine.GET("/healthz/detailed", gin.WrapH(s.health.DetailedHealthHandler()))

	v1 := s.engine.Group("/v1")
	v1.Use(s.observe())
	if s.limiter != nil {
		v1.Use(s.limiter.Middleware(s.sc))
	}
	{
		v1.POST("/chat", s.handleChat)
		v1.GET("/chat/stream", s.handleStream)
		v1.GET("/bookings", s.handleBookings)
		v1.GET("/slots", s.handleSlots)
	}
}

// Handler returns the gin engine, for tests and embedding.
func (s *APIServer) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *APIServer) Addr() string {
	return s.addr
}

// Start serves the API until Shutdown. It returns http.ErrServerClosed after
// a clean shutdown.
func (s *APIServer) Start() error {
	s.sc.Logger().Info("starting chat API", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests, closes open streams and waits for
// in-flight turns.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.sc.Logger().Info("shutting down chat API")
	s.health.SetReady(false)
	err := s.httpServer.Shutdown(ctx)

	s.streamsMu.Lock()
	for conn := range s.streams {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.streamsMu.Unlock()
	s.wg.Wait()

	s.sessions.Stop()
	return err
}

// observe logs and counts every API request.
func (s *APIServer) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		elapsed := time.Since(started)
		s.sc.Metrics().RecordHTTPRequest(c.Request.Context(), c.Request.Method, path, c.Writer.Status(), elapsed)
		s.sc.Logger().Debug("http request",
			"method", c.Request.Method,
			"path", path,
			logging.Status(strconv.Itoa(c.Writer.Status())),
			slog.Duration(logging.KeyDuration, elapsed))
	}
}

func (s *APIServer) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.sessions.ResolveSessionID(c.Request)
	} else {
		sessionID = NormalizeSessionID(sessionID)
	}
	s.sessions.Touch(sessionID)

	resp := s.sc.Assistant().Handle(c.Request.Context(), assistant.Request{
		SessionID: sessionID,
		Message:   req.Message,
		History:   req.History,
	})
	c.Header(SessionHeader, sessionID)
	c.JSON(http.StatusOK, ChatResponse{SessionID: sessionID, Response: resp})
}

// handleStream runs a conversation over a websocket: each inbound frame is
// one ChatRequest and yields exactly one ChatResponse frame.
func (s *APIServer) handleStream(c *gin.Context) {
	sessionID := s.sessions.ResolveSessionID(c.Request)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, http.Header{SessionHeader: []string{sessionID}})
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.sc.Logger().Warn("websocket upgrade failed", logging.Err(err))
		return
	}
	s.trackStream(conn, true)
	defer s.trackStream(conn, false)
	defer conn.Close()

	logger := s.sc.Logger().With(logging.Session(sessionID))
	conn.SetReadLimit(maxFrameBytes)
	s.sessions.Touch(sessionID)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(streamIdleTimeout))
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("stream closed", logging.Err(err))
			}
			return
		}
		s.sessions.Touch(sessionID)

		out := ChatResponse{SessionID: sessionID}
		if strings.TrimSpace(req.Message) == "" {
			out.Response = assistant.Response{Operation: assistant.OpError, Response: "message is required"}
		} else {
			out.Response = s.sc.Assistant().Handle(s.sc.Context(), assistant.Request{
				SessionID: sessionID,
				Message:   req.Message,
				History:   req.History,
			})
		}
		if err := conn.WriteJSON(out); err != nil {
			logger.Debug("stream write failed", logging.Err(err))
			return
		}
	}
}

func (s *APIServer) trackStream(conn *websocket.Conn, open bool) {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	if open {
		s.streams[conn] = struct{}{}
		s.wg.Add(1)
		return
	}
	delete(s.streams, conn)
	s.wg.Done()
}

func (s *APIServer) handleBookings(c *gin.Context) {
	bookings, err := s.sc.Store().List(c.Request.Context())
	if err != nil {
		s.sc.Logger().Error("listing bookings failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list bookings"})
		return
	}
	switch c.Query("status") {
	case "", "all":
	case string(booking.StatusActive):
		bookings = booking.ActiveOnly(bookings)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be active or all"})
		return
	}
	if bookings == nil {
		bookings = []booking.Booking{}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// handleSlots answers GET /v1/slots?start=&end=&duration=&step=&tz=. start
// and end accept RFC 3339 or any phrase the assistant understands.
func (s *APIServer) handleSlots(c *gin.Context) {
	now := time.Now()
	tz := c.DefaultQuery("tz", nlu.DefaultTimezone)

	start, err := nlu.ParseInstant(c.Query("start"), now, tz)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start: " + err.Error()})
		return
	}
	end, err := nlu.ParseInstant(c.Query("end"), now, tz)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end: " + err.Error()})
		return
	}
	if !start.Before(end) || end.Sub(start) > maxSlotWindow {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be after start and within 14 days"})
		return
	}
	duration, err := nlu.ParseMinutes(c.DefaultQuery("duration", strconv.Itoa(nlu.DefaultDurationMinutes)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration: " + err.Error()})
		return
	}
	var step time.Duration
	if raw := c.Query("step"); raw != "" {
		if step, err = nlu.ParseMinutes(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "step: " + err.Error()})
			return
		}
	}

	slots, err := s.sc.Assistant().Engine().FindFreeSlots(c.Request.Context(), start, end, duration, step)
	if err != nil {
		s.sc.Logger().Error("free slot search failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search free slots"})
		return
	}
	c.JSON(http.StatusOK, SlotsResponse{
		Start:    start,
		End:      end,
		Duration: int(duration / time.Minute),
		Slots:    slots,
	})
}

// originChecker mirrors the CORS policy for websocket upgrades.
func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
