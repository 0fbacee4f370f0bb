package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/claimstore/agent/internal/naming"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-directory file counts by state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// dirStatus counts the files of one directory.
type dirStatus struct {
	Dir      string
	Role     string
	Missing  bool
	ByState  map[naming.State]int
	Invalid  int
	Eligible int
}

func (a *agent) status() []dirStatus {
	col := a.cfg.Collector
	type target struct{ dir, role string }
	targets := make([]target, 0, len(col.CheckInDirs)+1)
	for _, d := range col.CheckInDirs {
		targets = append(targets, target{d, "check-in"})
	}
	targets = append(targets, target{col.CentralDir, "central"})

	out := make([]dirStatus, 0, len(targets))
	for _, t := range targets {
		st := dirStatus{Dir: t.dir, Role: t.role, ByState: make(map[naming.State]int)}
		if ok, _ := afero.DirExists(a.fs, t.dir); !ok {
			st.Missing = true
			out = append(out, st)
			continue
		}
		for _, o := range a.scanner.Inspect([]string{t.dir}, col.LockTimeout()) {
			if !o.Valid {
				st.Invalid++
				continue
			}
			st.ByState[o.Parsed.State()]++
			if o.Eligible && t.role == "check-in" {
				st.Eligible++
			}
		}
		out = append(out, st)
	}
	return out
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newAgent()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Agent: %s\n", a.cfg.Agent.Owner())
	fmt.Fprintf(out, "Lock timeout: %s  Poll interval: %s\n\n", a.cfg.Collector.LockTimeout(), a.cfg.Collector.PollInterval())
	writeStatusTable(out, a.status())
	return nil
}

func writeStatusTable(out io.Writer, statuses []dirStatus) {
	p := newPalette(out)
	states := []naming.State{naming.StateUnlocked, naming.StateLocked, naming.StateGathered, naming.StateReleased}

	headers := []string{"DIR", "ROLE"}
	for _, s := range states {
		headers = append(headers, s.String())
	}
	headers = append(headers, "invalid", "eligible")

	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		row := []string{st.Dir, st.Role}
		if st.Missing {
			for range len(headers) - 2 {
				row = append(row, "-")
			}
			rows = append(rows, row)
			continue
		}
		for _, s := range states {
			row = append(row, strconv.Itoa(st.ByState[s]))
		}
		row = append(row, strconv.Itoa(st.Invalid), strconv.Itoa(st.Eligible))
		rows = append(rows, row)
	}

	fmt.Fprintln(out, p.table(headers, rows, func(row, col int) lipgloss.Style {
		st := statuses[row]
		switch {
		case st.Missing:
			return p.bad
		case col == len(headers)-1 && st.Eligible > 0:
			return p.good
		case col == len(headers)-2 && st.Invalid > 0:
			return p.warn
		default:
			return p.renderer.NewStyle()
		}
	}))
}
