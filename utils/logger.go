package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	InfoLog  *slog.Logger
	ErrorLog *slog.Logger
)

// ParsearNivel traduce el LOG_LEVEL de la configuración a un nivel de slog
func ParsearNivel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NuevoLogger arma un logger de texto con el atributo de módulo
func NuevoLogger(w io.Writer, logLevel string, moduleName string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParsearNivel(logLevel),
	})
	return slog.New(handler).With("modulo", moduleName)
}

// InicializarLogger configura los loggers globales
func InicializarLogger(logLevel string, moduleName string) {
	logger := NuevoLogger(os.Stdout, logLevel, moduleName)

	InfoLog = logger
	ErrorLog = logger
}

// LoggerDescarte devuelve un logger que no escribe nada (tests y componentes sin logger)
func LoggerDescarte() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LoggerOPorDefecto devuelve l si no es nil, el logger global si está
// inicializado, o un logger de descarte
func LoggerOPorDefecto(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	if InfoLog != nil {
		return InfoLog
	}
	return LoggerDescarte()
}
