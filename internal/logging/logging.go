// Package logging builds the zap logger gtc reports trace anomalies with.
package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gtc/internal/view"
)

// New returns a development-style console logger writing to w. Level names
// are colored when color is set.
func New(w io.Writer, level zapcore.Level, color bool) *zap.Logger {
	config := zap.NewDevelopmentEncoderConfig()
	if color {
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	config.ConsoleSeparator = " "
	config.EncodeTime = zapcore.TimeEncoderOfLayout(`15:04:05.000`)
	config.CallerKey = zapcore.OmitKey

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(config), zapcore.AddSync(w), level)
	return zap.New(core)
}

// ForTerminal returns a logger on w, colored when w is a terminal.
func ForTerminal(w io.Writer, level zapcore.Level) *zap.Logger {
	return New(w, level, view.IsTerminal(w))
}
