package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/swrmeter/pkg/config"
)

func newTestDaemon(t *testing.T) *MeterDaemon {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Meter.ADC = "mock"
	cfg.CIV.Enabled = true
	cfg.CIV.Simulate = true
	cfg.API.UnixSocket = filepath.Join(dir, "swr.sock")
	cfg.Storage.DatabasePath = filepath.Join(dir, "swr.db")
	cfg.Web.BindAddress = "127.0.0.1"
	cfg.Web.Port = 0
	require.NoError(t, cfg.Validate())

	d, err := NewMeterDaemon(cfg, filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, d.Start())
	t.Cleanup(func() { d.Stop() })
	return d
}

func request(t *testing.T, d *MeterDaemon, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestDaemonAPI(t *testing.T) {
	d := newTestDaemon(t)

	t.Run("Board First Paint", func(t *testing.T) {
		code, body := request(t, d, http.MethodGet, "/api/v1/board?pull=true", "")
		assert.Equal(t, http.StatusOK, code)
		metrics := body["metrics"].(map[string]interface{})
		assert.Contains(t, metrics, "vswr")
		assert.Contains(t, metrics, "freq")
	})

	t.Run("Status", func(t *testing.T) {
		code, body := request(t, d, http.MethodGet, "/api/v1/status", "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "running", body["status"])
		assert.Equal(t, true, body["civ_enabled"])
		hw := body["hardware"].(map[string]interface{})
		assert.Equal(t, true, hw["simulated"])
	})

	t.Run("Band Select Tunes Radio", func(t *testing.T) {
		code, _ := request(t, d, http.MethodPut, "/api/v1/band", `{"band":"15"}`)
		require.Equal(t, http.StatusOK, code)

		sim := d.hardware.SimulatedRadio()
		assert.Eventually(t, func() bool {
			return sim.State().FrequencyHz == 21074000
		}, 5*time.Second, 20*time.Millisecond)

		code, _ = request(t, d, http.MethodPut, "/api/v1/band", `{"band":"3"}`)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("Simulated Key Measures Power", func(t *testing.T) {
		code, _ := request(t, d, http.MethodPost, "/api/v1/sim/ptt", `{"transmit":true}`)
		require.Equal(t, http.StatusOK, code)

		assert.Eventually(t, func() bool {
			_, body := request(t, d, http.MethodGet, "/api/v1/reading", "")
			return body["transmitting"] == true
		}, 5*time.Second, 20*time.Millisecond)

		code, _ = request(t, d, http.MethodPost, "/api/v1/sim/ptt", `{"transmit":false}`)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("Validation", func(t *testing.T) {
		code, _ := request(t, d, http.MethodPut, "/api/v1/options", `{"key":"weight","value":"0"}`)
		assert.Equal(t, http.StatusBadRequest, code)

		code, _ = request(t, d, http.MethodPut, "/api/v1/radio/power", `{"percent":150}`)
		assert.Equal(t, http.StatusBadRequest, code)

		code, _ = request(t, d, http.MethodPut, "/api/v1/sim/load", `{"vswr":0.5}`)
		assert.Equal(t, http.StatusBadRequest, code)

		code, _ = request(t, d, http.MethodPut, "/api/v1/profile", `{}`)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("Options", func(t *testing.T) {
		code, _ := request(t, d, http.MethodPut, "/api/v1/options", `{"key":"weight","value":"300"}`)
		require.Equal(t, http.StatusOK, code)

		assert.Eventually(t, func() bool {
			_, body := request(t, d, http.MethodGet, "/api/v1/options", "")
			weight := body["options"].(map[string]interface{})["weight"].(map[string]interface{})
			return weight["value"] == float64(300)
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("Config", func(t *testing.T) {
		code, body := request(t, d, http.MethodGet, "/api/v1/config", "")
		require.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, "meter")
		assert.Contains(t, body, "civ")
	})

	t.Run("History Stats", func(t *testing.T) {
		code, body := request(t, d, http.MethodGet, "/api/v1/history/stats", "")
		require.Equal(t, http.StatusOK, code)
		assert.NotEqual(t, "unknown", body["database_bytes"])
	})
}

func TestReadingWebSocket(t *testing.T) {
	d := newTestDaemon(t)

	server := httptest.NewServer(d.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "reading", msg["type"])

	metrics := msg["metrics"].(map[string]interface{})
	vswr := metrics["vswr"].(map[string]interface{})
	assert.Equal(t, "-.-", vswr["text"])
}
