package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare the committed root with the server's tree.",
	Run:   status,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func status(cmd *cobra.Command, args []string) {
	conf := loadConfigOrExit(cmd)
	s := newSessionOrExit(conf)
	msg, err := s.status(context.Background())
	if err != nil {
		fmt.Println("Error: " + err.Error())
		os.Exit(-1)
	}
	fmt.Println(msg)
}

func (s *session) status(ctx context.Context) (string, error) {
	r, err := s.orch.Status(ctx)
	if err != nil {
		return "", err
	}
	return formatReport(r), nil
}
