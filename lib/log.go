package lib

import (
	"io"
	"os"
	"runtime"

	colorable "github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	LogTimeFormat = "2006-01-02T15:04:05.000"
)

// ZeroConsoleAndFileLog configures zerolog to write to the console and,
// when enabled, to defaultFilename (or logging.file.path if set). The
// console format follows logging.console.format ("pretty" or "json").
func ZeroConsoleAndFileLog(defaultFilename string) zerolog.Logger {
	filename := viper.GetString("logging.file.path")
	if filename == "" {
		filename = defaultFilename
	}

	level, err := zerolog.ParseLevel(viper.GetString("logging.console.level"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer

	if viper.GetString("logging.console.format") == "pretty" {
		var consoleLog zerolog.ConsoleWriter
		if runtime.GOOS == "windows" {
			consoleLog = zerolog.ConsoleWriter{Out: colorable.NewColorableStdout(), TimeFormat: LogTimeFormat}
		} else {
			consoleLog = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: false, TimeFormat: LogTimeFormat}
		}
		writers = append(writers, consoleLog)
	} else {
		writers = append(writers, os.Stdout)
	}

	if viper.GetBool("logging.file.enabled") {
		var logFile *os.File
		if LocalFileExists(filename) {
			logFile, err = os.OpenFile(filename, os.O_WRONLY|os.O_APPEND, 0666)
		} else {
			logFile, err = os.Create(filename)
		}
		if err != nil {
			log.Error().Err(err).Str("path", filename).Msg("Error opening log file, continuing with console logging only")
		} else {
			writers = append(writers, logFile)
		}
	}

	mw := io.MultiWriter(writers...)
	logger := zerolog.New(mw).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
