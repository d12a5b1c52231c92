// Package server assembles the bench controller: hardware banks,
// channel controller, sensors, action log, MQTT mirror, terminal
// manager and the HTTP/WebSocket surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	apihttp "github.com/pengels22/Shop-Controller/internal/api/http"
	"github.com/pengels22/Shop-Controller/internal/api/middleware"
	"github.com/pengels22/Shop-Controller/internal/api/ws"
	"github.com/pengels22/Shop-Controller/internal/bench"
	"github.com/pengels22/Shop-Controller/internal/hardware"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/config"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/logging"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/monitoring"
	"github.com/pengels22/Shop-Controller/internal/logstore"
	"github.com/pengels22/Shop-Controller/internal/mqttbus"
	"github.com/pengels22/Shop-Controller/internal/sensor"
	"github.com/pengels22/Shop-Controller/internal/terminal"
)

// Server is the assembled bench controller application.
type Server struct {
	cfg    *config.Config
	logger *logging.Logger

	controller *bench.Controller
	pressure   *sensor.Pressure
	store      *logstore.Store
	bus        *mqttbus.Publisher
	terms      *terminal.Manager
	purger     *cron.Cron

	router     *gin.Engine
	httpServer *http.Server
}

// New wires the full application from configuration.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewDefault()
	}

	metrics := monitoring.NewMetrics()

	store := logstore.New(cfg.ActionLog.Dir, cfg.ActionLog.RetentionDays, logger)
	bus := mqttbus.New(cfg.MQTT, logger)

	channels, err := bench.LoadChannels(cfg.Bench.ChannelsFile)
	if err != nil {
		return nil, fmt.Errorf("load channel map: %w", err)
	}

	// Virtual banks track state in memory when no expander answers; a
	// real MCP23017 driver slots in behind the same Bank interface.
	banks := map[string]hardware.Bank{
		bench.BankMCP1: hardware.NewVirtualBank(bench.BankAddrs[bench.BankMCP1]),
		bench.BankMCP2: hardware.NewVirtualBank(bench.BankAddrs[bench.BankMCP2]),
	}

	controller := bench.New(banks, channels, store, bus, metrics, logger)
	controller.ApplyBootDefaults()
	bus.PublishAll(controller.Snapshot())

	pressure := sensor.New(sensor.VirtualADC{}, cfg.Pressure, logger)
	pressure.Start()

	terms := terminal.NewManager(cfg.Terminal, store, metrics, logger)

	// Retention runs once at boot and then daily.
	purger := cron.New()
	if _, err := purger.AddFunc("@daily", func() { store.Purge() }); err != nil {
		return nil, fmt.Errorf("schedule log purge: %w", err)
	}
	store.Purge()
	purger.Start()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(controller, banks, pressure, store, bus, cfg.Bench, logger)
	handlers.Register(router)

	wsHandler := ws.NewHandler(terms, metrics, logger)
	router.GET("/terminal", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Bench controller running.")
	})

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		controller: controller,
		pressure:   pressure,
		store:      store,
		bus:        bus,
		terms:      terms,
		purger:     purger,
		router:     router,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming terminal output has no bound
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Run serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("bench controller listening",
		zap.String("addr", s.httpServer.Addr),
		zap.Bool("mqtt", s.bus.Enabled()),
		zap.Bool("adc", s.pressure.Available()),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP listener, tears down terminal sessions and
// releases background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.terms.CloseAll()
	s.pressure.Stop()
	s.purger.Stop()
	s.bus.Close()

	s.logger.Info("bench controller stopped")
	return err
}
