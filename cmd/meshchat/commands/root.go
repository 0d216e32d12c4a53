package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

// RootCmd is the root command for meshchat
var RootCmd = &cobra.Command{
	Use:              "meshchat",
	Short:            "peer-to-peer LAN chat",
	TraverseChildren: true,
}
