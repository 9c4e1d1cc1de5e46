package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v2"

	"github.com/dougsko/swrmeter/pkg/civ"
	"github.com/dougsko/swrmeter/pkg/display"
	"github.com/dougsko/swrmeter/pkg/engine"
)

// handleHome describes the API
func (d *MeterDaemon) handleHome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "swrmeterd",
		"version": engine.Version,
		"api":     "/api/v1",
	})
}

func errorJSON(c *gin.Context, code int, err error) {
	c.JSON(code, gin.H{"error": err.Error()})
}

// handleGetStatus returns daemon status via socket
func (d *MeterDaemon) handleGetStatus(c *gin.Context) {
	status, err := d.socketClient.GetStatus()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "running",
		"version":        status.Version,
		"uptime":         status.Uptime,
		"started":        humanize.Time(status.StartTime),
		"transmitting":   status.Transmitting,
		"profile":        status.Profile,
		"band":           status.Band,
		"frequency":      status.FrequencyHz,
		"frequency_text": display.FrequencyText(status.FrequencyHz),
		"civ_enabled":    status.CIVEnabled,
		"radio_stale":    status.RadioStale,
		"hardware":       d.hardware.Info(),
	})
}

// handleGetReading returns the latest derived values
func (d *MeterDaemon) handleGetReading(c *gin.Context) {
	r, err := d.socketClient.GetReading()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reading":      r.Reading,
		"supply_volts": r.SupplyVolts,
		"transmitting": r.Transmitting,
		"text": gin.H{
			"net":  display.PowerText(r.Reading.Net),
			"pep":  display.PowerText(r.Reading.PEP),
			"vswr": display.VSWRText(r.Reading.VSWR),
		},
	})
}

// boardJSON renders board values with their display text
func boardJSON(values map[string]display.Value) gin.H {
	out := gin.H{}
	for name, v := range values {
		m, _ := display.ParseMetric(name)
		out[name] = gin.H{
			"value":     v.Value,
			"text":      display.Text(m, v),
			"is_update": v.IsUpdate,
		}
	}
	return out
}

// handleGetBoard returns the display board. The dirty flags are only
// consumed with ?pull=true so a polling renderer can repaint changes.
func (d *MeterDaemon) handleGetBoard(c *gin.Context) {
	board := d.meter.Board()
	if c.Query("pull") == "true" {
		c.JSON(http.StatusOK, gin.H{"metrics": boardJSON(board.PullDirty())})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": boardJSON(board.Snapshot())})
}

// handleGetEnvelope returns the modulation trace and its spectrum
func (d *MeterDaemon) handleGetEnvelope(c *gin.Context) {
	env := d.meter.Envelope()
	c.JSON(http.StatusOK, gin.H{
		"trace":      env.Trace(),
		"spectrum":   env.Spectrum(),
		"statistics": env.Statistics(),
	})
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleReadingWebSocket streams changed board values at 10 Hz. The first
// message carries every metric.
func (d *MeterDaemon) handleReadingWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		d.log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	d.log.Infof("Reading WebSocket client connected from %s", c.Request.RemoteAddr)

	// each client tracks its own changes
	last := map[string]float64{}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := d.meter.Snapshot()
			changed := gin.H{}
			for name, v := range d.meter.Board().Snapshot() {
				if prev, ok := last[name]; ok && prev == v.Value {
					continue
				}
				last[name] = v.Value
				m, _ := display.ParseMetric(name)
				changed[name] = gin.H{"value": v.Value, "text": display.Text(m, v)}
			}

			msg := gin.H{
				"type":         "reading",
				"timestamp":    snap.At.UnixMilli(),
				"transmitting": snap.Transmitting,
				"band":         snap.Band.Name,
				"metrics":      changed,
			}
			if err := conn.WriteJSON(msg); err != nil {
				d.log.Debugf("WebSocket write error: %v", err)
				return
			}

		case <-closed:
			d.log.Infof("Reading WebSocket client disconnected")
			return

		case <-d.ctx.Done():
			return
		}
	}
}

// handleGetProfile returns the active averaging profile
func (d *MeterDaemon) handleGetProfile(c *gin.Context) {
	snap := d.meter.Snapshot()
	c.JSON(http.StatusOK, gin.H{"profile": snap.Profile, "weight": snap.Weight})
}

// handleSetProfile selects an averaging profile via socket
func (d *MeterDaemon) handleSetProfile(c *gin.Context) {
	var req struct {
		Profile string `json:"profile" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	if err := d.socketClient.SetProfile(req.Profile); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued", "profile": req.Profile})
}

// handleResetHolds clears the peak holds via socket
func (d *MeterDaemon) handleResetHolds(c *gin.Context) {
	if err := d.socketClient.ResetHolds(); err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

// handleGetOptions returns the persisted options via socket
func (d *MeterDaemon) handleGetOptions(c *gin.Context) {
	o, err := d.socketClient.GetOptions()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"options": o})
}

// handleSetOption changes one persisted option via socket
func (d *MeterDaemon) handleSetOption(c *gin.Context) {
	var req struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	if err := d.socketClient.SetOption(req.Key, req.Value); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued", req.Key: req.Value})
}

// handleGetBands returns the band table and the active band
func (d *MeterDaemon) handleGetBands(c *gin.Context) {
	info, err := d.socketClient.GetBands()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// handleSelectBand selects a band by name, or the next enabled band
func (d *MeterDaemon) handleSelectBand(c *gin.Context) {
	var req struct {
		Band string `json:"band" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	if err := d.socketClient.SelectBand(req.Band); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued", "band": req.Band})
}

// handleGetRadio returns the CI-V view of the radio via socket
func (d *MeterDaemon) handleGetRadio(c *gin.Context) {
	radio, err := d.socketClient.GetRadioStatus()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, radio)
}

// handleSetFrequency tunes the radio via socket
func (d *MeterDaemon) handleSetFrequency(c *gin.Context) {
	var req struct {
		Frequency int64 `json:"frequency" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	if err := d.socketClient.SetFrequency(req.Frequency); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "queued",
		"frequency":      req.Frequency,
		"frequency_text": display.FrequencyText(req.Frequency),
	})
}

// handleSetPower sets the radio RF power via socket
func (d *MeterDaemon) handleSetPower(c *gin.Context) {
	var req struct {
		Percent *int `json:"percent" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	if err := d.socketClient.SetPower(*req.Percent); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued", "percent": *req.Percent})
}

// handleTune starts the radio's tuner via socket
func (d *MeterDaemon) handleTune(c *gin.Context) {
	if err := d.socketClient.Tune(); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

// handleGetHistory returns stored transmissions via socket
func (d *MeterDaemon) handleGetHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}

	rows, err := d.socketClient.GetHistory(limit)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, t := range rows {
		out = append(out, gin.H{
			"transmission": t,
			"when":         humanize.Time(t.StartedAt),
			"duration":     t.Duration().Round(time.Second).String(),
			"frequency":    display.FrequencyText(t.FrequencyHz),
			"pep":          display.PowerText(t.PEPWatts),
		})
	}
	c.JSON(http.StatusOK, gin.H{"transmissions": out, "count": len(out)})
}

// handleGetHistoryStats returns the running history totals
func (d *MeterDaemon) handleGetHistoryStats(c *gin.Context) {
	stats, err := d.store.GetHistoryStats()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":          stats,
		"total_text":     humanize.Comma(int64(stats.TotalTransmissions)),
		"on_air":         (time.Duration(stats.TotalSeconds) * time.Second).String(),
		"database_bytes": d.databaseSize(),
	})
}

func (d *MeterDaemon) databaseSize() string {
	size, err := d.store.Size()
	if err != nil {
		return "unknown"
	}
	return humanize.Bytes(uint64(size))
}

// handleGetConfig returns the running configuration
func (d *MeterDaemon) handleGetConfig(c *gin.Context) {
	// Marshal to YAML then back through a map so the keys match the file
	yamlData, err := yaml.Marshal(d.config)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, fmt.Errorf("failed to marshal config: %w", err))
		return
	}

	var yamlConfig interface{}
	if err := yaml.Unmarshal(yamlData, &yamlConfig); err != nil {
		errorJSON(c, http.StatusInternalServerError, fmt.Errorf("failed to unmarshal config: %w", err))
		return
	}

	c.JSON(http.StatusOK, convertYamlToJson(yamlConfig))
}

// convertYamlToJson converts YAML map[interface{}]interface{} to JSON-compatible map[string]interface{}
func convertYamlToJson(i interface{}) interface{} {
	switch x := i.(type) {
	case map[interface{}]interface{}:
		m2 := map[string]interface{}{}
		for k, v := range x {
			m2[fmt.Sprint(k)] = convertYamlToJson(v)
		}
		return m2
	case []interface{}:
		for i, v := range x {
			x[i] = convertYamlToJson(v)
		}
	}
	return i
}

// handleGetSerialDevices lists candidate CI-V ports
func (d *MeterDaemon) handleGetSerialDevices(c *gin.Context) {
	ports, err := civ.ListSerialPorts()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	if ports == nil {
		ports = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"serial_devices": ports,
		"configured":     d.config.CIV.Device,
	})
}

// handleSimPTT keys the simulated radio
func (d *MeterDaemon) handleSimPTT(c *gin.Context) {
	sim := d.hardware.SimulatedRadio()
	if sim == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "radio is not simulated"})
		return
	}

	var req struct {
		Transmit bool `json:"transmit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	sim.SetTransmitting(req.Transmit)
	c.JSON(http.StatusOK, gin.H{"radio": sim.State()})
}

// handleSimDial turns the simulated radio's VFO knob
func (d *MeterDaemon) handleSimDial(c *gin.Context) {
	sim := d.hardware.SimulatedRadio()
	if sim == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "radio is not simulated"})
		return
	}

	var req struct {
		Frequency int64 `json:"frequency" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	if err := sim.Dial(req.Frequency); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"radio": sim.State()})
}

// handleSimLoad sets the mismatch seen by the mock ADC
func (d *MeterDaemon) handleSimLoad(c *gin.Context) {
	adc := d.hardware.MockADC()
	if adc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ADC is not simulated"})
		return
	}

	var req struct {
		VSWR float64 `json:"vswr" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	if req.VSWR < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vswr must be at least 1"})
		return
	}

	adc.SetLoad(req.VSWR)
	fwd, ref := adc.Watts()
	c.JSON(http.StatusOK, gin.H{"vswr": req.VSWR, "forward_watts": fwd, "reflected_watts": ref})
}
