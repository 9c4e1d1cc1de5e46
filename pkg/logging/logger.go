package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/swrmeter/pkg/config"
	"gopkg.in/lumberjack.v2"
)

// LogLevel represents logging levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns string representation of log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string log level
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Fields carries structured key/value context
type Fields map[string]interface{}

// Logger writes component-tagged lines to the console and/or a rotating file
type Logger struct {
	mu           sync.Mutex
	level        LogLevel
	structured   bool
	sinks        []*log.Logger
	rotatingFile *lumberjack.Logger
	now          func() time.Time
}

// NewLogger creates a new logger from configuration
func NewLogger(cfg *config.Config) (*Logger, error) {
	logger := &Logger{
		level:      ParseLogLevel(cfg.Logging.Level),
		structured: cfg.Logging.Structured,
		now:        time.Now,
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		logger.rotatingFile = &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSize,    // megabytes
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAge, // days
			Compress:   cfg.Logging.Compress,
		}
		logger.sinks = append(logger.sinks, log.New(logger.rotatingFile, "", 0))
	}

	if cfg.Logging.Console || len(logger.sinks) == 0 {
		logger.sinks = append(logger.sinks, log.New(os.Stdout, "", 0))
	}

	return logger, nil
}

// NewWriterLogger creates a logger writing to w, mainly for tests
func NewWriterLogger(w io.Writer, level LogLevel, structured bool) *Logger {
	return &Logger{
		level:      level,
		structured: structured,
		sinks:      []*log.Logger{log.New(w, "", 0)},
		now:        time.Now,
	}
}

// Close closes the logger and any open files
func (l *Logger) Close() error {
	if l.rotatingFile != nil {
		return l.rotatingFile.Close()
	}
	return nil
}

// SetLevel changes the minimum level written
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) format(level LogLevel, component, message string, fields Fields) string {
	timestamp := l.now().Format("2006-01-02 15:04:05.000")

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if l.structured {
		var b strings.Builder
		fmt.Fprintf(&b, `{"time":"%s","level":"%s","component":"%s","message":%q`,
			timestamp, level, component, message)
		for _, k := range keys {
			fmt.Fprintf(&b, `,%q:"%v"`, k, fields[k])
		}
		b.WriteString("}")
		return b.String()
	}

	line := fmt.Sprintf("%s [%s] %s: %s", timestamp, level, component, message)
	if len(keys) > 0 {
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
		}
		line += " [" + strings.Join(parts, " ") + "]"
	}
	return line
}

func (l *Logger) log(level LogLevel, component, message string, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}
	line := l.format(level, component, message, fields)
	for _, sink := range l.sinks {
		sink.Println(line)
	}
}

// Component returns a logger bound to one component name
func (l *Logger) Component(name string) *ComponentLogger {
	return &ComponentLogger{logger: l, component: name}
}

// ComponentLogger tags every line with a fixed component and optional fields
type ComponentLogger struct {
	logger    *Logger
	component string
	fields    Fields
}

// With returns a copy carrying extra fields
func (c *ComponentLogger) With(fields Fields) *ComponentLogger {
	merged := make(Fields, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ComponentLogger{logger: c.logger, component: c.component, fields: merged}
}

func (c *ComponentLogger) Debugf(format string, args ...interface{}) {
	c.logger.log(LevelDebug, c.component, fmt.Sprintf(format, args...), c.fields)
}

func (c *ComponentLogger) Infof(format string, args ...interface{}) {
	c.logger.log(LevelInfo, c.component, fmt.Sprintf(format, args...), c.fields)
}

func (c *ComponentLogger) Warnf(format string, args ...interface{}) {
	c.logger.log(LevelWarn, c.component, fmt.Sprintf(format, args...), c.fields)
}

func (c *ComponentLogger) Errorf(format string, args ...interface{}) {
	c.logger.log(LevelError, c.component, fmt.Sprintf(format, args...), c.fields)
}

// Global logger instance
var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg *config.Config) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
	return nil
}

// SetGlobalLogger replaces the global logger
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// GetGlobalLogger returns the global logger
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		// Fallback to console logging if not initialized
		globalLogger = NewWriterLogger(os.Stdout, LevelInfo, false)
	}
	return globalLogger
}

// CloseGlobalLogger closes the global logger
func CloseGlobalLogger() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}

// For returns a component logger on the global logger
func For(component string) *ComponentLogger {
	return GetGlobalLogger().Component(component)
}

func Info(component, message string, fields ...Fields) {
	var f Fields
	if len(fields) > 0 {
		f = fields[0]
	}
	GetGlobalLogger().log(LevelInfo, component, message, f)
}

func Warn(component, message string, fields ...Fields) {
	var f Fields
	if len(fields) > 0 {
		f = fields[0]
	}
	GetGlobalLogger().log(LevelWarn, component, message, f)
}

func Error(component, message string, fields ...Fields) {
	var f Fields
	if len(fields) > 0 {
		f = fields[0]
	}
	GetGlobalLogger().log(LevelError, component, message, f)
}
