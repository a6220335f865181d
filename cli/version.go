package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coniks-sys/treesync/internal"
	"github.com/coniks-sys/treesync/protocol"
)

// A versionCommand is used to display a treesync executable's
// version.
type versionCommand struct {
	appName string
}

var _ cobraCommand = (*versionCommand)(nil)

// NewVersionCommand constructs a new VersionCommand for the given
// executable's appName.
func NewVersionCommand(appName string) *cobra.Command {
	versCmd := &versionCommand{
		appName: appName,
	}
	return versCmd.Build()
}

// Build constructs the cobra.Command according to the
// VersionCommand's settings. Besides the release it prints the
// protocol version, which clients and servers must agree on.
func (versCmd *versionCommand) Build() *cobra.Command {
	cmd := cobra.Command{
		Use:   "version",
		Short: "Print the version number of " + versCmd.appName + ".",
		Long:  `Print the version number of ` + versCmd.appName + ` and of the protocol it speaks.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString(versCmd.appName))
		},
	}
	return &cmd
}

func versionString(appName string) string {
	return fmt.Sprintf("%s v%s (protocol %s)", appName, internal.Version, protocol.Version)
}
