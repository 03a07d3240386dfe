package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/auth"
	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/engine"
	"github.com/Digital-Creators-Team/spin-rewards/events"
	"github.com/Digital-Creators-Team/spin-rewards/export"
	"github.com/Digital-Creators-Team/spin-rewards/middleware"
	"github.com/Digital-Creators-Team/spin-rewards/settlement"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// App is the operator API in front of the engine.
type App struct {
	router     *gin.Engine
	config     *config.Config
	logger     zerolog.Logger
	engine     *engine.Engine
	settlement *settlement.Manager
	exporter   *export.Service
	events     *events.Broadcaster
	httpServer *http.Server
	onShutdown []func()

	wheelHandler      *WheelHandler
	settlementHandler *SettlementHandler
	streamHandler     *StreamHandler
}

// Options holds server configuration options. Settlement may be nil when
// no signer is configured.
type Options struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Engine     *engine.Engine
	Settlement *settlement.Manager
	Exporter   *export.Service
	Events     *events.Broadcaster
}

// New creates the application and its handlers.
func New(opts Options) *App {
	if opts.Config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	app := &App{
		router:     gin.New(),
		config:     opts.Config,
		logger:     opts.Logger,
		engine:     opts.Engine,
		settlement: opts.Settlement,
		exporter:   opts.Exporter,
		events:     opts.Events,
	}

	app.wheelHandler = NewWheelHandler(app)
	app.settlementHandler = NewSettlementHandler(app)
	app.streamHandler = NewStreamHandler(app)
	return app
}

// UseCommonMiddlewares adds common middlewares to the application
func (a *App) UseCommonMiddlewares() {
	// Recovery middleware (must be first)
	a.router.Use(middleware.Recovery(a.logger))
	a.router.Use(middleware.RequestID())
	a.router.Use(middleware.Logging(a.logger))

	if a.config.Server.EnableCORS {
		a.router.Use(middleware.CORS(middleware.DashboardCORSConfig(a.config.Server.CORSOrigins)))
	}
}

// RegisterHealthCheck adds health check endpoints
func (a *App) RegisterHealthCheck() {
	a.router.GET("/health", a.healthCheck)
	a.router.GET("/api/health", a.healthCheck)
}

func (a *App) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"timestamp":  time.Now(),
		"service":    a.config.Environment,
		"settlement": a.settlement != nil,
		"listeners":  a.events.Listeners(),
	})
}

// RegisterMetrics exposes the Prometheus registry.
func (a *App) RegisterMetrics() {
	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterRoutes registers the operator API and the public event stream.
//
// Routes registered:
//   - GET    /api/wheel/state
//   - PUT    /api/wheel/segments
//   - POST   /api/wheel/segments
//   - PUT    /api/wheel/segments/:index/weight
//   - DELETE /api/wheel/segments/:index
//   - POST   /api/wheel/spin
//   - POST   /api/wheel/auto
//   - POST   /api/ingestion
//   - POST   /api/ingestion/poll
//   - POST   /api/participants
//   - DELETE /api/participants/:position
//   - GET    /api/settlement/session
//   - POST   /api/settlement/approve
//   - POST   /api/settlement/settle
//   - GET    /api/settlement/history
//   - GET    /api/export
//   - GET    /api/export/download
//   - GET    /api/wheel/events      (SSE, public)
//   - GET    /api/wheel/events/ws   (WebSocket, public)
func (a *App) RegisterRoutes() {
	stream := a.router.Group("/api/wheel/events")
	{
		stream.GET("", a.streamHandler.StreamEvents)
		stream.GET("/ws", a.streamHandler.StreamEventsWebSocket)
	}

	api := a.router.Group("/api")
	api.Use(auth.JWTMiddleware(a.config.JWT.Secret, a.logger))

	// Settlement waits for receipts and is bounded by the wallet's own
	// timeout, not the request timeout.
	settle := api.Group("/settlement")
	{
		settle.GET("/session", a.settlementHandler.GetSession)
		settle.POST("/approve", a.settlementHandler.Approve)
		settle.POST("/settle", a.settlementHandler.Settle)
		settle.GET("/history", a.settlementHandler.GetHistory)
	}

	timed := api.Group("", middleware.Timeout(a.config.Server.RequestTimeout))
	{
		wheel := timed.Group("/wheel")
		wheel.GET("/state", a.wheelHandler.GetState)
		wheel.PUT("/segments", a.wheelHandler.SetSegments)
		wheel.POST("/segments", a.wheelHandler.AddSegment)
		wheel.PUT("/segments/:index/weight", a.wheelHandler.ReweightSegment)
		wheel.DELETE("/segments/:index", a.wheelHandler.RemoveSegment)
		wheel.POST("/spin", a.wheelHandler.Spin)
		wheel.POST("/auto", a.wheelHandler.SetAutoSpin)

		timed.POST("/ingestion", a.wheelHandler.SetAutoIngest)
		timed.POST("/ingestion/poll", a.wheelHandler.PollNow)

		timed.POST("/participants", a.wheelHandler.AddParticipant)
		timed.DELETE("/participants/:position", a.wheelHandler.RemoveParticipant)

		timed.GET("/export", a.settlementHandler.Export)
		timed.GET("/export/download", a.settlementHandler.DownloadExport)
	}

	a.logger.Info().Msg("Operator routes registered under /api")
}

// Router returns the Gin engine for custom route registration
func (a *App) Router() *gin.Engine {
	return a.router
}

// OnShutdown registers a function to be called on shutdown
func (a *App) OnShutdown(fn func()) {
	a.onShutdown = append(a.onShutdown, fn)
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunWithContext(ctx)
}

// RunWithContext starts the HTTP server and shuts it down when ctx is done.
func (a *App) RunWithContext(ctx context.Context) error {
	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errChan:
		return err
	}
}

func (a *App) shutdown() error {
	a.logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Error during server shutdown")
		return err
	}

	for _, fn := range a.onShutdown {
		fn()
	}

	a.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger
func (a *App) Logger() zerolog.Logger {
	return a.logger
}
