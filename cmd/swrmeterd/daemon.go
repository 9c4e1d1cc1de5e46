package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/swrmeter/pkg/client"
	"github.com/dougsko/swrmeter/pkg/config"
	"github.com/dougsko/swrmeter/pkg/engine"
	"github.com/dougsko/swrmeter/pkg/hardware"
	"github.com/dougsko/swrmeter/pkg/logging"
	"github.com/dougsko/swrmeter/pkg/storage"
)

// MeterDaemon runs the meter loop, the control socket and the web API
type MeterDaemon struct {
	config     *config.Config
	configPath string
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	log        *logging.ComponentLogger

	// Core components
	hardware     *hardware.HardwareManager
	store        *storage.Store
	meter        *engine.Meter
	socketServer *engine.SocketServer
	socketClient *client.SocketClient
	webServer    *http.Server
	router       *gin.Engine

	socketPath string
}

// NewMeterDaemon opens the hardware and storage and builds the meter
func NewMeterDaemon(cfg *config.Config, configPath string) (*MeterDaemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &MeterDaemon{
		config:       cfg,
		configPath:   configPath,
		ctx:          ctx,
		cancel:       cancel,
		log:          logging.For("daemon"),
		socketPath:   cfg.API.UnixSocket,
		socketClient: client.NewSocketClient(cfg.API.UnixSocket),
	}

	d.hardware = hardware.NewHardwareManager(hardware.HardwareConfigFrom(cfg))
	if err := d.hardware.Initialize(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize hardware: %w", err)
	}

	store, err := storage.NewStore(cfg.Storage.DatabasePath, cfg.Storage.MaxHistory)
	if err != nil {
		d.hardware.Close()
		cancel()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	d.store = store

	d.meter, err = engine.New(engine.ConfigFrom(cfg), engine.Devices{
		ADC:     d.hardware.ADC(),
		Radio:   d.hardware.RadioPort(),
		Store:   store.EEPROM(),
		History: store,
	})
	if err != nil {
		d.close()
		return nil, fmt.Errorf("failed to create meter: %w", err)
	}

	d.socketServer = engine.NewSocketServer(d.meter, store, d.socketPath)
	d.setupWebServer()

	return d, nil
}

// Start runs the meter loop, the socket and the web server
func (d *MeterDaemon) Start() error {
	d.log.Infof("Starting swrmeter daemon...")

	if err := d.socketServer.Start(); err != nil {
		return fmt.Errorf("failed to start socket server: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.meter.Run(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Errorf("meter loop stopped: %v", err)
		}
	}()

	if !d.socketClient.IsConnected() {
		return fmt.Errorf("failed to connect to control socket")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.log.Infof("Starting web server on %s", d.webServer.Addr)
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.log.Errorf("Web server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts everything down in reverse order
func (d *MeterDaemon) Stop() error {
	d.log.Infof("Stopping daemon...")

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			d.log.Warnf("Web server shutdown error: %v", err)
		}
	}

	if err := d.socketServer.Stop(); err != nil {
		d.log.Warnf("Socket server shutdown error: %v", err)
	}

	// stops the meter loop, which records any open transmission
	d.cancel()
	d.wg.Wait()

	d.close()
	d.log.Infof("Daemon stopped")
	return nil
}

func (d *MeterDaemon) close() {
	d.cancel()
	// queued history and option writes go out before the database closes
	if d.meter != nil {
		if err := d.meter.Close(); err != nil {
			d.log.Warnf("Meter close error: %v", err)
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.log.Warnf("Storage close error: %v", err)
		}
	}
	if err := d.hardware.Close(); err != nil {
		d.log.Warnf("Hardware close error: %v", err)
	}
}

// setupWebServer initializes the router and routes
func (d *MeterDaemon) setupWebServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), d.requestLogger())

	router.GET("/", d.handleHome)

	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/reading", d.handleGetReading)
		api.GET("/board", d.handleGetBoard)
		api.GET("/envelope", d.handleGetEnvelope)
		api.GET("/ws", d.handleReadingWebSocket)

		api.GET("/profile", d.handleGetProfile)
		api.PUT("/profile", d.handleSetProfile)
		api.POST("/reset", d.handleResetHolds)

		api.GET("/options", d.handleGetOptions)
		api.PUT("/options", d.handleSetOption)

		api.GET("/bands", d.handleGetBands)
		api.PUT("/band", d.handleSelectBand)

		api.GET("/radio", d.handleGetRadio)
		api.PUT("/radio/frequency", d.handleSetFrequency)
		api.PUT("/radio/power", d.handleSetPower)
		api.POST("/radio/tune", d.handleTune)

		api.GET("/history", d.handleGetHistory)
		api.GET("/history/stats", d.handleGetHistoryStats)

		api.GET("/config", d.handleGetConfig)
		api.GET("/serial-devices", d.handleGetSerialDevices)

		sim := api.Group("/sim")
		{
			sim.POST("/ptt", d.handleSimPTT)
			sim.PUT("/frequency", d.handleSimDial)
			sim.PUT("/load", d.handleSimLoad)
		}
	}

	d.router = router
	d.webServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.config.Web.BindAddress, d.config.Web.Port),
		Handler: router,
	}
}

// requestLogger sends gin's request log through the component logger
func (d *MeterDaemon) requestLogger() gin.HandlerFunc {
	log := logging.For("web")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugf("%s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
