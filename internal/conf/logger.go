// Package conf provides configuration management for the sargazo predictor.
package conf

import "github.com/sargazo/sargazo-predictor/internal/logger"

// GetLogger returns the config package logger scoped to the config module.
// The logger is fetched from the global logger each time so that it follows
// the central logger once main has installed it.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
