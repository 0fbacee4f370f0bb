package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/claimstore/agent/internal/cleanup"
	"github.com/claimstore/agent/internal/util"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove temporary files left by interrupted cross-device moves",
	Long: `Remove hidden .partial files left in the check-in and central
directories by agents that died while copying a body across devices.

Only files older than --max-age are removed. The default is the lock
timeout, after which the source body has been reclaimed anyway.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().Bool("dry-run", false, "list what would be removed without removing it")
	cleanupCmd.Flags().Duration("max-age", 0, "minimum age of removed files (default is the lock timeout)")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	a, err := newAgent()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	maxAge, _ := cmd.Flags().GetDuration("max-age")
	if maxAge <= 0 {
		maxAge = a.cfg.Collector.LockTimeout()
	}

	dirs := append(append([]string(nil), a.cfg.Collector.CheckInDirs...), a.cfg.Collector.CentralDir)
	job := cleanup.NewJob(a.fs, a.clock, dirs, maxAge)
	if job.Error != "" {
		a.logger.Warn("cleanup snapshot incomplete", "error", job.Error)
	}

	out := cmd.OutOrStdout()
	if len(job.Stale) == 0 {
		fmt.Fprintln(out, "No abandoned temporary files")
		return nil
	}

	now := a.clock.Now()
	for _, sf := range job.Stale {
		fmt.Fprintf(out, "%s  (%s old, %d bytes)\n", sf.Path(), util.FormatAge(now.Sub(sf.ModTime)), sf.Size)
	}
	if dryRun {
		fmt.Fprintf(out, "%d file(s) would be removed\n", len(job.Stale))
		return nil
	}

	err = cleanup.NewExecutor(a.fs, a.clock, a.logger).Execute(job)
	if job.Results != nil {
		fmt.Fprintf(out, "Removed %d, skipped %d, failed %d (job %s, %s)\n",
			job.Results.Removed, job.Results.Skipped, len(job.Results.Errors),
			job.ID, job.EndedAt.Sub(job.StartedAt).Round(time.Millisecond))
	}
	return err
}
