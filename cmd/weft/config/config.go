// Package configcmder provides the config command for managing persistent
// weft configuration stored in the .weft/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent weft configuration.

Configuration is stored as config.toml in the .weft/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  api.listen,
  graph_store.provider, graph_store.uri, graph_store.username,
  vector_store.provider, vector_store.target, vector_store.sqlite_path,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  eventstream.provider, eventstream.brokers, eventstream.topic,
  retrieval.lookback_days, retrieval.max_depth, retrieval.min_frequency,
  resolution.confidence_threshold

Use subcommands to get, set, or list configuration values:
  weft config set <key> <value>    Set a configuration value
  weft config get <key>            Get a configuration value
  weft config list                 List all configuration values

Examples:
  weft config set graph_store.provider neo4j
  weft config set embedding.model nomic-embed-text
  weft config get vector_store.provider
  weft config list`

const configShortDesc string = "Manage persistent weft configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
