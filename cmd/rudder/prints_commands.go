package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rudder/internal/config"
	"rudder/internal/dedup"
	"rudder/internal/ingest"
	"rudder/internal/logbook"
	"rudder/internal/services"
)

func newPrintsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "prints",
		Short: "List recorded print jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *logbook.Store) error {
				var (
					jobs []*logbook.Job
					err  error
				)
				if limit > 0 {
					jobs, err = store.RecentJobs(cmd.Context(), limit)
				} else {
					jobs, err = store.ListJobs(cmd.Context())
				}
				if err != nil {
					return err
				}
				if jsonOut {
					if jobs == nil {
						jobs = []*logbook.Job{}
					}
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No prints recorded")
					return nil
				}
				fmt.Fprintln(out, renderJobsTable(jobs, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the most recent N prints")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	cmd.AddCommand(newPrintsShowCommand(ctx))
	return cmd
}

func newPrintsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one print with its slicer parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *logbook.Store) error {
				job, err := store.GetJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, job)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderJobDetail(job))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	return cmd
}

func renderJobsTable(jobs []*logbook.Job, now time.Time) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			truncate(job.Filename, 48),
			statusLabel(job.Status),
			ageLabel(job.StartTime, now),
			intLabel(job.QualityRating),
			textLabel(job.Label),
		})
	}
	return renderTable(
		[]string{"ID", "File", "Status", "Started", "Quality", "Label"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func renderJobDetail(job *logbook.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Print %d: %s\n", job.ID, job.Filename)
	fmt.Fprintf(&b, "  Status:   %s\n", statusLabel(job.Status))
	fmt.Fprintf(&b, "  Started:  %s\n", stampLabel(job.StartTime))
	if job.EndTime != nil {
		fmt.Fprintf(&b, "  Finished: %s\n", stampLabel(*job.EndTime))
	}
	fmt.Fprintf(&b, "  File:     %s\n", textLabel(job.SourcePath))
	fmt.Fprintf(&b, "  Quality:  %s  Functionality: %s\n", intLabel(job.QualityRating), intLabel(job.FunctionalityRating))
	if strings.TrimSpace(job.Notes) != "" {
		fmt.Fprintf(&b, "  Notes:    %s\n", job.Notes)
	}
	if len(job.Parameters) == 0 {
		b.WriteString("  No slicer parameters captured\n")
		return b.String()
	}
	rows := make([][]string, 0, len(job.Parameters))
	for _, p := range job.Parameters {
		rows = append(rows, []string{p.Name, p.Value, yesNo(p.IsChanged)})
	}
	b.WriteString(renderTable([]string{"Parameter", "Value", "Changed"}, rows, nil))
	b.WriteString("\n")
	return b.String()
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.gcode>",
		Short: "Record a G-code file as a pending print",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer file.Close()

			return ctx.withStore(func(cfg *config.Config, store *logbook.Store) error {
				pipeline := ingest.New(cfg, store, nil, dedup.NewInFlight(), cliLogger(cmd, cfg))
				result, err := pipeline.Upload(cmd.Context(), filepath.Base(path), file)
				if err != nil {
					return describeServiceError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded print %d (%d parameters)\n", result.JobID, len(result.Parameters))
				return nil
			})
		},
	}
}

func newCompleteCommand(ctx *commandContext) *cobra.Command {
	var req ingest.CompletionRequest
	var quality, functionality, temperature, humidity string

	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a print finished and record its outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("quality") {
				req.QualityRating = quality
			}
			if flags.Changed("functionality") {
				req.FunctionalityRating = functionality
			}
			if flags.Changed("temperature") {
				req.AmbientTemperature = temperature
			}
			if flags.Changed("humidity") {
				req.AmbientHumidity = humidity
			}
			return ctx.withStore(func(cfg *config.Config, store *logbook.Store) error {
				pipeline := ingest.New(cfg, store, nil, dedup.NewInFlight(), cliLogger(cmd, cfg))
				if err := pipeline.Complete(cmd.Context(), id, req); err != nil {
					return describeServiceError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Print %d updated\n", id)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Status, "status", "", "Outcome: success, failed, cancelled or pending (default success)")
	flags.StringVar(&quality, "quality", "", "Quality rating")
	flags.StringVar(&functionality, "functionality", "", "Functionality rating")
	flags.StringVar(&req.Label, "label", "", "Short label")
	flags.StringVar(&temperature, "temperature", "", "Ambient temperature")
	flags.StringVar(&humidity, "humidity", "", "Ambient humidity")
	flags.StringVar(&req.Notes, "notes", "", "Free-form notes")
	return cmd
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}

// describeServiceError appends the error hint, when one is attached.
func describeServiceError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	if hint := services.Hint(err); hint != "" {
		return fmt.Errorf("%w (hint: %s)", err, hint)
	}
	return err
}
