// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/pickline/glasspick/pkg/config"
)

// LogFile is the rotated log file name inside the log directory.
const LogFile = "glasspick.log"

// Init sets up the global logger: a rotated file in cfg.Dir plus an
// optional console writer. An empty Dir logs to the console only.
func Init(cfg config.Log) error {
	var writers []io.Writer

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, LogFile),
			MaxSize:    1,
			MaxBackups: 2,
		})
	}
	if cfg.Console || cfg.Dir == "" {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
		level = parsed
	}
	zerolog.SetGlobalLevel(level)
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	log.Logger = log.Output(io.MultiWriter(writers...)).
		With().Timestamp().Caller().Logger()

	return nil
}
