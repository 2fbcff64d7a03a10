// Package config defines the CLI structure for padbridge.
package config

import (
	"padbridge/internal/cmd"
)

type Log struct {
	Level string `help:"Log level: trace, debug, info, warn, error" default:"info" env:"PADBRIDGE_LOG_LEVEL"`
	File  string `help:"Log file path (default: none; logs only to console)" env:"PADBRIDGE_LOG_FILE"`
}

// CLI is the root command structure for Kong CLI parsing.
type CLI struct {
	Log `embed:"" prefix:"log."`

	Monitor cmd.Monitor `cmd:"" help:"Discover, acquire and poll the bridged gamepad"`
	Export  cmd.Export  `cmd:"" help:"Export a local joystick to bridge consumers"`
}
