package commands

import (
	"github.com/mosaicnetworks/meshchat/src/config"
)

// CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Meshchat config.Config `mapstructure:",squash"`
	Quit     bool          `mapstructure:"quit"`
}

// NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Meshchat: *config.NewDefaultConfig(),
		Quit:     false,
	}
}
