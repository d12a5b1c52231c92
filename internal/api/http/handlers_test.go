package http

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pengels22/Shop-Controller/internal/bench"
	"github.com/pengels22/Shop-Controller/internal/hardware"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/config"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/logging"
	"github.com/pengels22/Shop-Controller/internal/logstore"
	"github.com/pengels22/Shop-Controller/internal/sensor"
)

func newTestRouter(t *testing.T, benchCfg config.BenchConfig) (*gin.Engine, *bench.Controller, *logstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	banks := map[string]hardware.Bank{
		bench.BankMCP1: hardware.NewVirtualBank(0x20),
		bench.BankMCP2: hardware.NewVirtualBank(0x21),
	}
	store := logstore.New(t.TempDir(), 7, logging.NewNop())
	controller := bench.New(banks, bench.DefaultChannels(), store, nil, nil, logging.NewNop())
	pressure := sensor.New(sensor.VirtualADC{}, config.Default().Pressure, logging.NewNop())

	h := NewHandlers(controller, banks, pressure, store, nil, benchCfg, logging.NewNop())
	r := gin.New()
	h.Register(r)
	return r, controller, store
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestRouter(t, config.Default().Bench)

	w, resp := doJSON(t, r, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, false, resp["mcp1"], "virtual banks report unavailable")
	assert.Equal(t, false, resp["mcp2"])
	assert.Equal(t, false, resp["adc"])
	assert.Equal(t, false, resp["mqtt"])
}

func TestStateReflectsSet(t *testing.T) {
	r, _, _ := newTestRouter(t, config.Default().Bench)

	w, resp := doJSON(t, r, http.MethodPost, "/api/set",
		`{"channel":"bench1_hv","state":true}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, true, resp["state"])

	_, resp = doJSON(t, r, http.MethodGet, "/api/state", "")
	state := resp["state"].(map[string]interface{})
	assert.Equal(t, true, state["bench1_hv"])
	assert.Equal(t, false, state["bench2_hv"])
}

func TestSetUnknownChannel(t *testing.T) {
	r, _, _ := newTestRouter(t, config.Default().Bench)

	w, resp := doJSON(t, r, http.MethodPost, "/api/set",
		`{"channel":"bogus","state":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["ok"])
}

func TestSetLRReportsRemoteLocal(t *testing.T) {
	r, controller, _ := newTestRouter(t, config.Default().Bench)

	w, resp := doJSON(t, r, http.MethodPost, "/api/set",
		`{"channel":"lr1","state":true}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["remote"])
	assert.Equal(t, false, resp["local"])
	assert.True(t, controller.Get("lr1"))
}

func TestAllOff(t *testing.T) {
	r, controller, _ := newTestRouter(t, config.Default().Bench)
	require.NoError(t, controller.EnablePower("bench1"))

	w, resp := doJSON(t, r, http.MethodPost, "/api/all_off", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["ok"])
	for _, ch := range bench.Benches["bench1"] {
		assert.False(t, controller.Get(ch), ch)
	}
}

func TestUSBDefaultsToFullEnable(t *testing.T) {
	r, controller, _ := newTestRouter(t, config.Default().Bench)

	w, resp := doJSON(t, r, http.MethodPost, "/api/usb", `{"port":3}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["data"])
	assert.Equal(t, true, resp["vbus"])
	assert.True(t, controller.Get("port3_en"))
	assert.True(t, controller.Get("port3_vcc_en"))
}

func TestUSBBadPort(t *testing.T) {
	r, _, _ := newTestRouter(t, config.Default().Bench)

	w, resp := doJSON(t, r, http.MethodPost, "/api/usb", `{"port":9}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, resp["ok"])
}

func TestBenchServiceUnknownBench(t *testing.T) {
	r, _, _ := newTestRouter(t, config.Default().Bench)

	w, resp := doJSON(t, r, http.MethodPost, "/api/bench_service",
		`{"bench":"bench9","enable":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["ok"])
}

func TestBenchServiceDisable(t *testing.T) {
	r, controller, _ := newTestRouter(t, config.Default().Bench)
	require.NoError(t, controller.USBPortEnable(2, true, true))

	w, resp := doJSON(t, r, http.MethodPost, "/api/bench_service",
		`{"bench":"bench2","enable":false}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["ok"])
	assert.False(t, controller.Get("port2_vcc_en"))
}

func TestAirPressure(t *testing.T) {
	r, _, _ := newTestRouter(t, config.Default().Bench)

	w, resp := doJSON(t, r, http.MethodGet, "/api/air_pressure", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["ok"], "virtual adc reports unavailable")
	assert.Equal(t, 0.0, resp["psi"])
	assert.Equal(t, "divider", resp["mode"])
	assert.Equal(t, 200.0, resp["max_psi"])
}

func TestLogTail(t *testing.T) {
	r, controller, _ := newTestRouter(t, config.Default().Bench)
	require.NoError(t, controller.SetChannel("bench3_12v", true))

	w, resp := doJSON(t, r, http.MethodGet, "/api/log_tail?n=10", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["ok"])
	assert.NotEmpty(t, resp["path"])

	lines := resp["lines"].([]interface{})
	require.Len(t, lines, 1)
	rec := lines[0].(map[string]interface{})
	assert.Equal(t, "rail_change", rec["event"])
	assert.Equal(t, "bench3", rec["bench"])
}

func TestLogTailEmpty(t *testing.T) {
	r, _, _ := newTestRouter(t, config.Default().Bench)

	w, resp := doJSON(t, r, http.MethodGet, "/api/log_tail", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp["lines"])
}

func TestBenchServiceStartProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	cfg := config.BenchConfig{TCPHost: "127.0.0.1", TCPBasePort: port}
	r, _, _ := newTestRouter(t, cfg)

	// bench1 maps straight onto the base port.
	w, resp := doJSON(t, r, http.MethodPost, "/api/bench/1/service/start", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["ok"])
	assert.Contains(t, resp["tcp"], "127.0.0.1:")
}

func TestBenchServiceStartProbeFails(t *testing.T) {
	// Grab a free port and close it again so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := config.BenchConfig{TCPHost: "127.0.0.1", TCPBasePort: port}
	r, _, _ := newTestRouter(t, cfg)

	w, resp := doJSON(t, r, http.MethodPost, "/api/bench/1/service/start", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, false, resp["ok"])
	assert.NotEmpty(t, resp["error"])
}

func TestBenchServiceStartUnknownBench(t *testing.T) {
	r, _, _ := newTestRouter(t, config.Default().Bench)

	w, resp := doJSON(t, r, http.MethodPost, "/api/bench/9/service/start", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, resp["ok"])
}
