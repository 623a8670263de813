package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rudder/internal/cleanup"
	"rudder/internal/config"
	"rudder/internal/logbook"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var dryRun, auto bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Find and remove duplicate print records",
		Long: "Groups prints that share a filename, keeps the best record of each group " +
			"(rated, successful, with a stored file, most recent) and removes the rest.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun && auto {
				return fmt.Errorf("--dry-run and --auto are mutually exclusive")
			}
			mode := cleanup.ModeInteractive
			switch {
			case dryRun:
				mode = cleanup.ModeDryRun
			case auto:
				mode = cleanup.ModeAuto
			}
			if mode == cleanup.ModeInteractive && !isInteractive(cmd) {
				return errNotInteractive
			}

			return ctx.withStore(func(cfg *config.Config, store *logbook.Store) error {
				out := cmd.OutOrStdout()
				cleaner := cleanup.New(store, cliLogger(cmd, cfg))
				recs, err := cleaner.Analyze(cmd.Context())
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(out, "No duplicate prints found")
					return nil
				}

				fmt.Fprintf(out, "Found %d filename(s) with duplicates; %d record(s) recommended for removal\n\n",
					len(recs), cleanup.TotalRemovals(recs))
				fmt.Fprintln(out, renderRecommendations(recs, time.Now()))

				var confirm cleanup.Confirm
				if mode == cleanup.ModeInteractive {
					p := newPrompter(cmd)
					confirm = func(rec cleanup.Recommendation) (bool, error) {
						return p.confirm(fmt.Sprintf("Remove %d duplicate(s) of %s, keeping #%d?",
							len(rec.Remove), rec.Filename, rec.Keep.Job.ID))
					}
				}

				report, err := cleaner.Apply(cmd.Context(), recs, mode, confirm)
				if err != nil {
					return err
				}
				printCleanupReport(out, mode, report)
				if report.Failed > 0 {
					return fmt.Errorf("%d duplicate record(s) could not be removed", report.Failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only show what would be removed")
	cmd.Flags().BoolVar(&auto, "auto", false, "Remove every recommended duplicate without asking")
	return cmd
}

func renderRecommendations(recs []cleanup.Recommendation, now time.Time) string {
	groups := make([][][]string, 0, len(recs))
	for _, rec := range recs {
		rows := [][]string{recommendationRow("KEEP", rec.Filename, rec.Keep, now)}
		for _, cand := range rec.Remove {
			rows = append(rows, recommendationRow("remove", rec.Filename, cand, now))
		}
		groups = append(groups, rows)
	}
	return renderGroupedTable(
		[]string{"Action", "ID", "File", "Status", "Started", "Quality", "Stored", "Score"},
		groups,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
	)
}

func recommendationRow(action, filename string, cand cleanup.Candidate, now time.Time) []string {
	job := cand.Job
	return []string{
		action,
		strconv.FormatInt(job.ID, 10),
		truncate(filename, 40),
		statusLabel(job.Status),
		ageLabel(job.StartTime, now),
		intLabel(job.QualityRating),
		yesNo(job.SourcePath != ""),
		strconv.FormatFloat(cand.Score, 'f', 2, 64),
	}
}

func printCleanupReport(out io.Writer, mode cleanup.Mode, report cleanup.Report) {
	if mode == cleanup.ModeDryRun {
		fmt.Fprintln(out, "Dry run: nothing was removed")
		return
	}
	fmt.Fprintf(out, "Removed %d duplicate record(s)\n", report.Removed)
	if report.SkippedGroups > 0 {
		fmt.Fprintf(out, "Skipped %d group(s)\n", report.SkippedGroups)
	}
	if report.ResidualGroups > 0 {
		fmt.Fprintf(out, "Warning: %d filename(s) still have duplicates\n", report.ResidualGroups)
	} else {
		fmt.Fprintln(out, "No duplicates remain")
	}
}
