package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/claimstore/agent/internal/event"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the collector until interrupted",
	Long: `Run the collector loop: one pass immediately, then one per poll interval.

SIGINT or SIGTERM stops the loop after the in-flight pass has finished;
a collection is never interrupted half-way.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("quiet", false, "do not print a line per non-empty pass")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	a, err := newAgent()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	c, err := a.newCollector()
	if err != nil {
		return err
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if !quiet {
		out := cmd.OutOrStdout()
		a.bus.Subscribe(event.TypePassCompleted, func(e event.Event) {
			pe, ok := e.(event.PassCompletedEvent)
			if !ok || pe.Eligible == 0 {
				return
			}
			fmt.Fprintf(out, "%s pass %d: %s\n", pe.Timestamp().Format("15:04:05"), pe.Pass, summary(pe.Eligible, pe.Collected, pe.Conflicts, pe.Failures))
		})
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	c.Stop()
	return nil
}

// contextOrBackground lets commands run outside cobra.ExecuteContext.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
