package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSweepCommand 执行一轮回收后退出，适合由 cron 调度
func NewSweepCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Reclaim expired and exhausted shares once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d shares\n", n)
			return nil
		},
	}
}
