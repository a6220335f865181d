package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// DefaultConfigFile is the configuration file looked up in the
// working directory when --config isn't given.
const DefaultConfigFile = "config.toml"

// A rootCommand is used to create a treesync executable's
// root command that executes all subcommands.
type rootCommand struct {
	use   string
	short string
	long  string
}

var _ cobraCommand = (*rootCommand)(nil)

// NewRootCommand constructs a new RootCommand for the given
// executable's use, short and long descriptions.
func NewRootCommand(use, short, long string) *cobra.Command {
	rootCmd := &rootCommand{
		use:   use,
		short: short,
		long:  long,
	}
	return rootCmd.Build()
}

// Build constructs the cobra.Command according to the
// RootCommand's settings. Every subcommand inherits the
// --config flag.
func (rootCmd *rootCommand) Build() *cobra.Command {
	cmd := cobra.Command{
		Use:          rootCmd.use,
		Short:        rootCmd.short,
		Long:         rootCmd.long,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringP("config", "c", DefaultConfigFile,
		"Path to the "+rootCmd.use+" configuration file")
	return &cmd
}

// ConfigPath returns the value of the --config flag of cmd.
func ConfigPath(cmd *cobra.Command) string {
	return cmd.Flag("config").Value.String()
}

// Execute runs rootCmd with the process arguments and exits
// with a non-zero status if a command fails.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
