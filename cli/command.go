// Package cli builds the cobra commands shared by the treesync
// executables.
package cli

import (
	"github.com/spf13/cobra"
)

// cobraCommand is used to implement any type of cobra command
// for any of the treesync command-line tools and executables.
type cobraCommand interface {
	Build() *cobra.Command
}
