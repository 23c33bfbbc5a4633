package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/lancer-kit/noble"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

//nolint:gochecknoglobals
var (
	DefaultLevel   = zerolog.InfoLevel
	DefaultLogFile = "embedctl.log"
)

// Configuration for logging
type Config struct {
	// Level is a string representation of the `zerolog.Level`.
	Level noble.Secret `json:"level" yaml:"level"`
	// AppName is attached to every record as the `app` field.
	AppName string `json:"app_name" yaml:"app_name"`
	// Disable console logging
	DisableConsoleLog bool `json:"disable_console_log" yaml:"disable_console_log"`
	// LogsAsJSON writes plain JSON to stderr instead of the console format
	LogsAsJSON bool `json:"logs_as_json" yaml:"logs_as_json"`
	// FileLoggingEnabled makes the framework log to a file
	// the fields below can be skipped if this value is false!
	FileLoggingEnabled bool `json:"file_logging_enabled" yaml:"file_logging_enabled"`
	// Directory to log to to when filelogging is enabled
	Directory string `json:"directory" yaml:"directory"`
	// Filename is the name of the logfile which will be placed inside the directory
	Filename string `json:"filename" yaml:"filename"`
	// MaxSize the max size in MB of the logfile before it's rolled
	MaxSize int `json:"max_size" yaml:"max_size"`
	// MaxBackups the max number of rolled files to keep
	MaxBackups int `json:"max_backups" yaml:"max_backups"`
	// MaxAge the max age in days to keep a logfile
	MaxAge int `json:"max_age" yaml:"max_age"`
}

func (Config) Default() Config {
	return Config{
		AppName:            "embedctl",
		DisableConsoleLog:  false,
		LogsAsJSON:         false,
		FileLoggingEnabled: false,
		Directory:          "",
		Filename:           DefaultLogFile,
		MaxSize:            150,
		MaxBackups:         3,
		MaxAge:             28,
	}
}

func New(config Config) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(config.Level.Get())
	if err != nil || config.Level.Get() == "" {
		logLevel = DefaultLevel
	}

	var writers []io.Writer
	if !config.DisableConsoleLog {
		writers = append(writers, consoleWriter(config.LogsAsJSON))
	}
	if config.FileLoggingEnabled {
		if file := newRollingFile(config); file != nil {
			writers = append(writers, file)
		}
	}
	if len(writers) == 0 {
		return zerolog.Nop()
	}

	appName := config.AppName
	if appName == "" {
		appName = "embedctl"
	}

	logger := zerolog.New(io.MultiWriter(writers...)).
		Level(logLevel).
		With().
		Str("app", appName).
		Timestamp().
		Logger()

	logger.Trace().
		Bool("fileLogging", config.FileLoggingEnabled).
		Bool("jsonLogOutput", config.LogsAsJSON).
		Str("logDirectory", config.Directory).
		Str("fileName", config.Filename).
		Int("maxSizeMB", config.MaxSize).
		Int("maxBackups", config.MaxBackups).
		Int("maxAgeInDays", config.MaxAge).
		Msg("logging configured")

	return logger
}

func consoleWriter(asJSON bool) io.Writer {
	if asJSON {
		return os.Stderr
	}

	out := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}
	out.TimeFormat = time.RFC3339
	out.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}
	out.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("%-6s  |>", i)
	}
	return out
}

func newRollingFile(config Config) io.Writer {
	if err := os.MkdirAll(config.Directory, 0744); err != nil {
		fmt.Fprintf(os.Stderr, "can't create log directory %s: %s\n", config.Directory, err)
		return nil
	}

	return &lumberjack.Logger{
		Filename:   path.Join(config.Directory, config.Filename),
		MaxBackups: config.MaxBackups, // files
		MaxSize:    config.MaxSize,    // megabytes
		MaxAge:     config.MaxAge,     // days
	}
}
