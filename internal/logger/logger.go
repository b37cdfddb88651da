package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New cria o logger da aplicação. Em dev a saída é legível e o nível é debug.
func New(appEnv string) zerolog.Logger {
	return NewWithWriter(appEnv, os.Stdout)
}

// NewWithWriter cria o logger escrevendo em w
func NewWithWriter(appEnv string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if appEnv == "dev" {
		level = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: true}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(level)
}
