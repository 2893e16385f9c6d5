// Package ulogger is the pluggable logging sink every core component
// accepts at construction. The core never prints to standard streams
// directly outside of this package's console writer.
package ulogger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ordishs/go-utils"
	"github.com/ordishs/gocore"
	"github.com/rs/zerolog"
)

// Logger is the sink interface spec.md §6 requires: log/error plus
// optional granular levels.
type Logger = utils.Logger

const (
	colorGreen  = 32
	colorYellow = 33
	colorRed    = 31
	colorBlue   = 34
	colorWhite  = 37
	colorBold   = 1
)

// ZLoggerWrapper adapts zerolog to the Logger interface, mirroring the
// teacher's util.ZLoggerWrapper.
type ZLoggerWrapper struct {
	zerolog.Logger
	service string
}

// NewLogger selects between a gocore leveled logger and a zerolog logger
// based on the "logger" config key, matching util.NewLogger.
func NewLogger(service string, logLevel ...string) Logger {
	useLogger, _ := gocore.Config().Get("logger", "zerolog")

	switch useLogger {
	case "gocore":
		if len(logLevel) > 0 {
			return gocore.Log(service, gocore.NewLogLevelFromString(logLevel[0]))
		}
		return gocore.Log(service)
	default:
		return NewZeroLogger(service, logLevel...)
	}
}

// NewZeroLogger builds a zerolog-backed Logger, pretty-printed unless
// PRETTY_LOGS=false.
func NewZeroLogger(service string, logLevel ...string) *ZLoggerWrapper {
	if service == "" {
		service = "anchorcore"
	}

	var z *ZLoggerWrapper
	if gocore.Config().GetBool("PRETTY_LOGS", true) {
		z = prettyZeroLogger(service)
	} else {
		z = &ZLoggerWrapper{
			Logger: zerolog.New(os.Stdout).With().
				Timestamp().
				Logger(),
			service: service,
		}
	}

	if len(logLevel) > 0 {
		setLevel(logLevel[0], z)
	}

	return z
}

func setLevel(level string, z *ZLoggerWrapper) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		z.Logger = z.Logger.Level(zerolog.DebugLevel)
	case "INFO":
		z.Logger = z.Logger.Level(zerolog.InfoLevel)
	case "WARN":
		z.Logger = z.Logger.Level(zerolog.WarnLevel)
	case "ERROR":
		z.Logger = z.Logger.Level(zerolog.ErrorLevel)
	case "FATAL":
		z.Logger = z.Logger.Level(zerolog.FatalLevel)
	default:
		z.Logger = z.Logger.Level(zerolog.InfoLevel)
	}
}

func prettyZeroLogger(service string) *ZLoggerWrapper {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	output.FormatTimestamp = func(i interface{}) string {
		t, _ := time.Parse(time.RFC3339, fmt.Sprintf("%s", i))
		return t.Format("15:04:05")
	}

	output.FormatLevel = func(i interface{}) string {
		level := strings.ToUpper(fmt.Sprintf("%-5s", i))

		switch fmt.Sprintf("%s", i) {
		case "debug":
			return colorize(level, colorBlue)
		case "info":
			return colorize(level, colorGreen)
		case "warn":
			return colorize(level, colorYellow)
		case "error", "fatal", "panic":
			return colorize(level, colorRed)
		default:
			return colorize(level, colorWhite)
		}
	}

	output.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("[%s] %s", service, i)
	}

	return &ZLoggerWrapper{
		Logger:  zerolog.New(output).With().Timestamp().Logger(),
		service: service,
	}
}

func colorize(s string, color int) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, s)
}

func (z *ZLoggerWrapper) LogLevel() int {
	switch z.Logger.GetLevel() {
	case zerolog.DebugLevel:
		return int(gocore.DEBUG)
	case zerolog.WarnLevel:
		return int(gocore.WARN)
	case zerolog.ErrorLevel:
		return int(gocore.ERROR)
	case zerolog.FatalLevel:
		return int(gocore.FATAL)
	default:
		return int(gocore.INFO)
	}
}

func (z *ZLoggerWrapper) SetLogLevel(level string) { setLevel(level, z) }

func (z *ZLoggerWrapper) Debugf(format string, args ...interface{}) { z.Logger.Debug().Msgf(format, args...) }
func (z *ZLoggerWrapper) Infof(format string, args ...interface{})  { z.Logger.Info().Msgf(format, args...) }
func (z *ZLoggerWrapper) Warnf(format string, args ...interface{})  { z.Logger.Warn().Msgf(format, args...) }
func (z *ZLoggerWrapper) Errorf(format string, args ...interface{}) { z.Logger.Error().Msgf(format, args...) }
func (z *ZLoggerWrapper) Fatalf(format string, args ...interface{}) { z.Logger.Fatal().Msgf(format, args...) }
