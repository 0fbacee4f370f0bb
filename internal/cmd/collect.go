package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run exactly one collection pass",
	Args:  cobra.NoArgs,
	RunE:  runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, _ []string) error {
	a, err := newAgent()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	c, err := a.newCollector()
	if err != nil {
		return err
	}

	res := c.RunPass()
	fmt.Fprintln(cmd.OutOrStdout(), summary(res.Eligible, res.Collected, res.Conflicts, res.Failures))
	return nil
}

func summary(eligible, collected, conflicts, failures int) string {
	return fmt.Sprintf("%d eligible, %d collected, %d conflicts, %d failed", eligible, collected, conflicts, failures)
}
