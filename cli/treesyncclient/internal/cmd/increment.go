package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var incrementCmd = &cobra.Command{
	Use:   "increment [index] [delta]",
	Short: "Increment a leaf of the shared tree.",
	Long: `Increment leaf [index] by [delta].

The update is committed on chain first. Only once it is final is the
server's copy of the tree replaced.`,
	Args: cobra.ExactArgs(2),
	Run:  increment,
}

func init() {
	RootCmd.AddCommand(incrementCmd)
}

func increment(cmd *cobra.Command, args []string) {
	conf := loadConfigOrExit(cmd)
	s := newSessionOrExit(conf)
	msg, err := s.increment(context.Background(), args[0], args[1])
	if err != nil {
		fmt.Println("Error: " + err.Error())
		os.Exit(-1)
	}
	fmt.Println(msg)
}

func (s *session) increment(ctx context.Context, index, delta string) (string, error) {
	i, err := strconv.ParseUint(index, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid index %q", index)
	}
	d, err := strconv.ParseUint(delta, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid delta %q", delta)
	}
	res, err := s.orch.Increment(ctx, i, d)
	if err != nil {
		return "", err
	}
	return formatResult(res), nil
}
