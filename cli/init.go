package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// An initCommand is used to create a treesync executable's
// configuration and keys.
type initCommand struct {
	appName string
	runFunc func(cmd *cobra.Command, args []string)
}

var _ cobraCommand = (*initCommand)(nil)

// NewInitCommand constructs a new InitCommand for the given
// executable's appName and the runFunc implementing
// the initialization command.
func NewInitCommand(appName string, runFunc func(cmd *cobra.Command, args []string)) *cobra.Command {
	initCmd := &initCommand{
		appName: appName,
		runFunc: runFunc,
	}
	return initCmd.Build()
}

// Build constructs the cobra.Command according to the
// InitCommand's settings. The --dir flag names where generated
// files go; the directory is created before runFunc is called.
func (initCmd *initCommand) Build() *cobra.Command {
	cmd := cobra.Command{
		Use:   "init",
		Short: "Create a configuration file and keys for " + initCmd.appName + ".",
		Long: `Create a configuration file and keys for ` + initCmd.appName + `.

Existing files are never overwritten.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return os.MkdirAll(InitDir(cmd), 0700)
		},
		Run: initCmd.runFunc,
	}
	cmd.Flags().StringP("dir", "d", ".",
		"Location of directory for storing generated files")
	return &cmd
}

// InitDir returns the value of the --dir flag of an init command.
func InitDir(cmd *cobra.Command) string {
	return cmd.Flag("dir").Value.String()
}
