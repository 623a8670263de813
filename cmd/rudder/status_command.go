package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rudder/internal/config"
	"rudder/internal/daemon"
	"rudder/internal/logbook"
	"rudder/internal/moonraker"
	"rudder/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, controller and logbook status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := statusLines(cmd.Context(), cfg, colorize)
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func statusLines(ctx context.Context, cfg *config.Config, colorize bool) []string {
	if ctx == nil {
		ctx = context.Background()
	}
	var lines []string

	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	running, err := daemon.IsRunning(cfg)
	switch {
	case err != nil:
		lines = append(lines, renderStatusLine("Daemon", statusError, err.Error(), colorize))
	case running:
		lines = append(lines, renderStatusLine("Daemon", statusOK, "Running (lock "+daemon.LockPath(cfg)+")", colorize))
	default:
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "Not running", colorize))
	}
	lines = append(lines, renderStatusLine("API", statusInfo, cfg.Paths.APIBind, colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Printer", colorize)...)
	probe := preflight.ProbePrinter(ctx, moonraker.NewFromConfig(cfg))
	kind := statusOK
	if !probe.Reachable {
		kind = statusError
	} else if probe.State != moonraker.StatePrinting {
		kind = statusInfo
	}
	lines = append(lines, renderStatusLine("Moonraker", kind, probe.Detail(), colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	for _, result := range preflight.RunAll(ctx, cfg) {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Logbook", colorize)...)
	lines = append(lines, logbookLines(ctx, cfg, colorize)...)
	return lines
}

func logbookLines(ctx context.Context, cfg *config.Config, colorize bool) []string {
	store, err := logbook.Open(cfg)
	if err != nil {
		return []string{renderStatusLine("Database", statusError, err.Error(), colorize)}
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		return []string{renderStatusLine("Database", statusError, err.Error(), colorize)}
	}

	lines := []string{renderStatusLine("Database", statusOK, store.Path(), colorize)}
	counts, err := store.Counts(ctx)
	if err != nil {
		return append(lines, renderStatusLine("Counts", statusError, err.Error(), colorize))
	}
	lines = append(lines,
		renderStatusLine("Prints", statusInfo, humanize.Comma(int64(counts.Jobs)), colorize),
		renderStatusLine("Maintenance", statusInfo, humanize.Comma(int64(counts.Maintenance)), colorize),
	)
	groups, err := store.DuplicateGroups(ctx)
	if err != nil {
		return append(lines, renderStatusLine("Duplicates", statusError, err.Error(), colorize))
	}
	if len(groups) > 0 {
		lines = append(lines, renderStatusLine("Duplicates", statusWarn,
			fmt.Sprintf("%d filename(s) recorded more than once; run `rudder cleanup`", len(groups)), colorize))
	} else {
		lines = append(lines, renderStatusLine("Duplicates", statusOK, "None", colorize))
	}
	return lines
}
