package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/claimstore/agent/internal/scanner"
	"github.com/claimstore/agent/internal/util"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the files the next pass would collect",
	Long: `List the check-in directories the way the collector sees them,
without touching any file.

By default only eligible files are shown; --all also shows files whose lock
is still held, files below the minimum age and unrecognised names.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().Bool("all", false, "show every file, not just eligible ones")
	scanCmd.Flags().Bool("json", false, "print JSON instead of a table")
	rootCmd.AddCommand(scanCmd)
}

// scanRecord is the JSON form of one observation.
type scanRecord struct {
	Dir      string     `json:"dir"`
	Name     string     `json:"name"`
	Identity string     `json:"identity,omitempty"`
	Kind     string     `json:"kind,omitempty"`
	State    string     `json:"state,omitempty"`
	LockedAt *time.Time `json:"locked_at,omitempty"`
	ModTime  time.Time  `json:"mod_time"`
	Size     int64      `json:"size"`
	Eligible bool       `json:"eligible"`
	Reason   string     `json:"reason"`
}

func runScan(cmd *cobra.Command, _ []string) error {
	a, err := newAgent()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	all, _ := cmd.Flags().GetBool("all")
	asJSON, _ := cmd.Flags().GetBool("json")

	var obs []scanner.Observation
	for _, o := range a.scanner.Inspect(a.cfg.Collector.CheckInDirs, a.cfg.Collector.LockTimeout()) {
		if all || o.Eligible {
			obs = append(obs, o)
		}
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeScanJSON(out, obs)
	}
	if len(obs) == 0 {
		fmt.Fprintln(out, "No eligible files")
		return nil
	}
	writeScanTable(out, obs, a.clock.Now())
	return nil
}

func writeScanJSON(out io.Writer, obs []scanner.Observation) error {
	records := make([]scanRecord, 0, len(obs))
	for _, o := range obs {
		r := scanRecord{
			Dir:      o.Dir,
			Name:     o.Name,
			State:    o.State(),
			ModTime:  o.ModTime,
			Size:     o.Size,
			Eligible: o.Eligible,
			Reason:   o.Reason,
		}
		if o.Valid {
			r.Identity = o.Parsed.Identity
			r.Kind = string(o.Parsed.Kind)
			if o.Parsed.IsLocked() {
				at := o.Parsed.LockedAt()
				r.LockedAt = &at
			}
		}
		records = append(records, r)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func writeScanTable(out io.Writer, obs []scanner.Observation, now time.Time) {
	p := newPalette(out)
	nameWidth := max(24, p.width-70)

	rows := make([][]string, 0, len(obs))
	for _, o := range obs {
		name := o.Name
		age := now.Sub(o.ModTime)
		if o.Valid {
			name = util.ShortIdentity(o.Parsed.Identity, 12) + "." + string(o.Parsed.Kind)
			if o.Parsed.IsLocked() {
				age = o.LockAge
			}
		}
		state := o.State()
		if state == "" {
			state = "-"
		}
		rows = append(rows, []string{
			util.TruncateANSI(o.Dir, 30),
			util.TruncateANSI(name, nameWidth),
			state,
			util.FormatAge(age),
			o.Reason,
		})
	}

	fmt.Fprintln(out, p.table([]string{"DIR", "FILE", "STATE", "AGE", "REASON"}, rows, func(row, col int) lipgloss.Style {
		if col != 4 {
			return p.renderer.NewStyle()
		}
		switch o := obs[row]; {
		case o.Eligible:
			return p.good
		case o.Valid:
			return p.warn
		default:
			return p.dim
		}
	}))
}
