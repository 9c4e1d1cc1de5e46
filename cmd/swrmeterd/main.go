package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/dougsko/swrmeter/pkg/config"
	"github.com/dougsko/swrmeter/pkg/engine"
	"github.com/dougsko/swrmeter/pkg/logging"
	"github.com/dougsko/swrmeter/pkg/verbose"
)

var (
	configPath = flag.StringP("config", "c", "config.yaml", "Configuration file path")
	socketPath = flag.String("socket", "", "Unix socket path (overrides config)")
	simulate   = flag.Bool("simulate", false, "Use the mock ADC and a simulated IC-7300")
	verboseLog = flag.BoolP("verbose", "v", false, "Trace CI-V frames")
	version    = flag.Bool("version", false, "Show version information")
)

const Build = "development"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("swrmeterd version %s (%s)\n", engine.Version, Build)
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()
	verbose.SetEnabled(cfg.Logging.Verbose)

	logging.Info("main", fmt.Sprintf("swrmeterd version %s starting...", engine.Version))
	logging.Info("main", fmt.Sprintf("ADC: %s, calibration: %s", cfg.Meter.ADC, cfg.Calibration.Preset))
	if cfg.CIV.Enabled {
		logging.Info("main", fmt.Sprintf("CI-V: radio 0x%02X on %s (simulated: %v)", cfg.CIV.RadioAddress, cfg.CIV.Device, cfg.CIV.Simulate))
	}
	logging.Info("main", fmt.Sprintf("Web interface: http://%s:%d", cfg.Web.BindAddress, cfg.Web.Port))

	daemon, err := NewMeterDaemon(cfg, *configPath)
	if err != nil {
		logging.Error("main", fmt.Sprintf("Failed to create daemon: %v", err))
		os.Exit(1)
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := daemon.Start(); err != nil {
		logging.Error("main", fmt.Sprintf("Failed to start daemon: %v", err))
		daemon.Stop()
		os.Exit(1)
	}

	logging.Info("main", "swrmeterd started successfully")

	<-sigChan
	logging.Info("main", "Shutting down...")

	if err := daemon.Stop(); err != nil {
		logging.Error("main", fmt.Sprintf("Error during shutdown: %v", err))
	}

	logging.Info("main", "swrmeterd stopped")
}

// loadConfig reads the config file and applies the command line overrides.
// A missing default config file means built-in defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || flag.CommandLine.Changed("config") {
			return nil, err
		}
		cfg = config.Default()
	}

	if *socketPath != "" {
		cfg.API.UnixSocket = *socketPath
	}
	if *simulate {
		cfg.Meter.ADC = "mock"
		cfg.CIV.Enabled = true
		cfg.CIV.Simulate = true
	}
	if *verboseLog {
		cfg.Logging.Verbose = true
	}
	return cfg, nil
}
