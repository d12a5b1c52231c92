// Package http holds the REST surface of the bench controller. Every
// handler answers the {"ok": bool, ...} envelope the shop UI expects.
package http

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pengels22/Shop-Controller/internal/bench"
	"github.com/pengels22/Shop-Controller/internal/hardware"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/config"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/logging"
	"github.com/pengels22/Shop-Controller/internal/logstore"
	"github.com/pengels22/Shop-Controller/internal/mqttbus"
	"github.com/pengels22/Shop-Controller/internal/sensor"
)

const (
	logTailDefault = 200
	logTailMax     = 2000

	serviceProbeTimeout = 2 * time.Second
)

// Handlers bundles the REST endpoints and their collaborators.
type Handlers struct {
	controller *bench.Controller
	banks      map[string]hardware.Bank
	pressure   *sensor.Pressure
	store      *logstore.Store
	bus        *mqttbus.Publisher
	benchCfg   config.BenchConfig
	logger     *logging.Logger
}

// NewHandlers wires the REST layer.
func NewHandlers(
	controller *bench.Controller,
	banks map[string]hardware.Bank,
	pressure *sensor.Pressure,
	store *logstore.Store,
	bus *mqttbus.Publisher,
	benchCfg config.BenchConfig,
	logger *logging.Logger,
) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		controller: controller,
		banks:      banks,
		pressure:   pressure,
		store:      store,
		bus:        bus,
		benchCfg:   benchCfg,
		logger:     logger,
	}
}

// Register mounts all API routes on the router group.
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/api/health", h.Health)
	r.GET("/api/state", h.State)
	r.POST("/api/set", h.Set)
	r.POST("/api/all_off", h.AllOff)
	r.POST("/api/usb", h.USB)
	r.POST("/api/bench_service", h.BenchService)
	r.GET("/api/air_pressure", h.AirPressure)
	r.GET("/api/log_tail", h.LogTail)
	r.POST("/api/bench/:id/service/start", h.BenchServiceStart)
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}

// Health reports controller liveness and hardware availability.
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{
		"ok":   true,
		"adc":  h.pressure.Available(),
		"mqtt": h.bus.Enabled(),
	}
	for key, bank := range h.banks {
		resp[key] = bank.Available()
	}
	c.JSON(http.StatusOK, resp)
}

// State returns the full semantic channel state.
func (h *Handlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.controller.Snapshot()})
}

type setRequest struct {
	Channel string `json:"channel"`
	State   bool   `json:"state"`
}

// Set drives one channel. lr1/lr2 carry Local/Remote semantics: state
// true selects REMOTE.
func (h *Handlers) Set(c *gin.Context) {
	var req setRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if !h.controller.Known(req.Channel) {
		fail(c, http.StatusBadRequest, fmt.Errorf("unknown channel %q", req.Channel))
		return
	}

	switch req.Channel {
	case "lr1", "lr2":
		port := 1
		if req.Channel == "lr2" {
			port = 2
		}
		if err := h.controller.SetLR(port, req.State); err != nil {
			fail(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":      true,
			"channel": req.Channel,
			"remote":  req.State,
			"local":   !req.State,
		})
	default:
		if err := h.controller.SetChannel(req.Channel, req.State); err != nil {
			fail(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "channel": req.Channel, "state": req.State})
	}
}

// AllOff kills every bench rail and disables every USB port.
func (h *Handlers) AllOff(c *gin.Context) {
	if err := h.controller.AllOff(); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type usbRequest struct {
	Port int   `json:"port"`
	Data *bool `json:"data"`
	VBus *bool `json:"vbus"`
}

// USB sequences one port's data and VBUS lines. Omitted fields default
// to enabled.
func (h *Handlers) USB(c *gin.Context) {
	var req usbRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	data, vbus := true, true
	if req.Data != nil {
		data = *req.Data
	}
	if req.VBus != nil {
		vbus = *req.VBus
	}

	if err := h.controller.USBPortEnable(req.Port, data, vbus); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "port": req.Port, "data": data, "vbus": vbus})
}

type benchServiceRequest struct {
	Bench  string `json:"bench"`
	Enable bool   `json:"enable"`
}

// BenchService enters or leaves service mode for one bench.
func (h *Handlers) BenchService(c *gin.Context) {
	var req benchServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if _, ok := bench.Benches[req.Bench]; !ok {
		fail(c, http.StatusBadRequest, fmt.Errorf("unknown bench %q", req.Bench))
		return
	}

	var err error
	if req.Enable {
		err = h.controller.ServiceEnable(req.Bench)
	} else {
		err = h.controller.ServiceDisable(req.Bench)
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "bench": req.Bench, "enable": req.Enable})
}

// AirPressure returns the smoothed shop air pressure.
func (h *Handlers) AirPressure(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      h.pressure.Available(),
		"psi":     math.Round(h.pressure.Current()*100) / 100,
		"mode":    h.pressure.WiringMode(),
		"max_psi": h.pressure.MaxPSI(),
	})
}

// LogTail returns the last N parsed action log records of today.
func (h *Handlers) LogTail(c *gin.Context) {
	n := logTailDefault
	if raw := c.Query("n"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			n = v
		}
	}
	if n < 1 {
		n = 1
	}
	if n > logTailMax {
		n = logTailMax
	}

	recs, err := h.store.TailRecords(n)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "path": h.store.TodayPath(), "lines": recs})
}

// BenchServiceStart probes the bench's serial bridge over TCP so the
// UI can tell whether the tool on the bench is reachable before it
// opens a session. Bench N listens on TCPBasePort+N-1.
func (h *Handlers) BenchServiceStart(c *gin.Context) {
	benchID, err := strconv.Atoi(c.Param("id"))
	if err != nil || benchID < 1 || benchID > len(bench.Benches) {
		fail(c, http.StatusNotFound, fmt.Errorf("unknown bench"))
		return
	}

	addr := net.JoinHostPort(h.benchCfg.TCPHost,
		strconv.Itoa(h.benchCfg.TCPBasePort+benchID-1))

	conn, err := net.DialTimeout("tcp", addr, serviceProbeTimeout)
	if err != nil {
		h.logger.Warn("bench bridge probe failed",
			zap.Int("bench", benchID),
			zap.String("addr", addr),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{
			"ok":    false,
			"bench": benchID,
			"tcp":   addr,
			"error": err.Error(),
		})
		return
	}
	conn.Close()

	c.JSON(http.StatusOK, gin.H{"ok": true, "bench": benchID, "tcp": addr})
}
