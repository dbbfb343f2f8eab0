package http

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"crewsync/internal/app"
	"crewsync/internal/config"
	"crewsync/internal/domain"
	"crewsync/internal/transport/ws"
)

// GameService is what the control API exposes
type GameService interface {
	app.Transport
	FindRoom(ctx context.Context, code string) (*domain.Room, error)
}

// Server represents the HTTP server
type Server struct {
	server  *http.Server
	engine  *gin.Engine
	service GameService
	feed    *ws.Hub
	config  *config.Config
	logger  *slog.Logger
	limiter *clientLimiter
}

// NewServer creates a new HTTP server. feed may be nil, in which case the
// room feed endpoint is not registered.
func NewServer(cfg *config.Config, service GameService, feed *ws.Hub, logger *slog.Logger) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:  gin.New(),
		service: service,
		feed:    feed,
		config:  cfg,
		logger:  logger,
		limiter: newClientLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
	}

	s.engine.Use(s.recovery(), s.requestLogger(), s.cors())
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        cfg.GetAddr(),
		Handler:     s.engine,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)

	rooms := api.Group("/rooms")
	rooms.POST("", s.rateLimit(), s.handleCreateRoom)
	rooms.POST("/join", s.rateLimit(), s.handleJoinRoom)
	rooms.GET("/:code", s.handleSnapshot)
	rooms.GET("/:code/messages", s.handleMessages)
	rooms.GET("/:code/qr", s.handleInviteQR)
	rooms.POST("/:code/start", s.rateLimit(), s.handleStartGame)
	rooms.POST("/:code/emergency", s.rateLimit(), s.handleEmergency)
	rooms.POST("/:code/vote", s.rateLimit(), s.handleVote)
	rooms.POST("/:code/task", s.rateLimit(), s.handleTasks)
	rooms.POST("/:code/message", s.rateLimit(), s.handleMessage)
	rooms.POST("/:code/settle", s.handleSettle)

	if s.feed != nil {
		feed := ws.NewHandler(s.feed, s.service, s.logger)
		s.engine.GET("/ws/rooms/:code", func(c *gin.Context) {
			feed.Serve(c.Writer, c.Request, c.Param("code"))
		})
	}
}

// Handler returns the routed engine, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.server.Shutdown(ctx)
}

// requestLogger logs every request once it has been served
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Polling reads are noisy outside development
		level := slog.LevelInfo
		if c.Request.Method == http.MethodGet && !s.config.IsDevelopment() {
			level = slog.LevelDebug
		}

		s.logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

// recovery turns a handler panic into an internal error response
func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		s.logger.Error("handler panic", "path", c.Request.URL.Path, "panic", recovered)
		s.sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		c.Abort()
	})
}

func (s *Server) cors() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
		MaxAge: 12 * time.Hour,
	}

	origins := s.config.Server.AllowedOrigins
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// rateLimit throttles writes per client address
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.allow(c.ClientIP()) {
			s.sendError(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
