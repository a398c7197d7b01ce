// Package weftcmder assembles the root weft command and its subcommands.
package weftcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/loomery/weft/cmd/weft/config"
	servecmder "github.com/loomery/weft/cmd/weft/serve"
	versioncmder "github.com/loomery/weft/cmd/version"
)

const weftLongDesc string = `Weft is a cross-session knowledge engine for work activity.

It ingests sessions and extracted entities/concepts into a relationship
graph, keeps embedding mirrors in sync, and answers hybrid graph+vector
context queries across sessions.

Run the service using:
  weft serve           Run the HTTP server`

const weftShortDesc string = "Weft - Cross-Session Knowledge Engine"

func NewWeftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weft",
		Short: weftShortDesc,
		Long:  weftLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .weft/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
