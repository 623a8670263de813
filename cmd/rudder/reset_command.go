package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rudder/internal/config"
	"rudder/internal/daemon"
	"rudder/internal/datareset"
	"rudder/internal/logbook"
)

var errResetCancelled = errors.New("reset cancelled")

type resetOptions struct {
	force      bool
	backupOnly bool
	noBackup   bool
	restoreDir string
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var opts resetOptions

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Back up, clear or restore the logbook database and uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.backupOnly && opts.noBackup {
				return fmt.Errorf("--backup-only and --no-backup are mutually exclusive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			running, err := daemon.IsRunning(cfg)
			if err != nil {
				return err
			}
			if running && !opts.backupOnly {
				return fmt.Errorf("the rudder daemon is running (lock %s); stop it first", daemon.LockPath(cfg))
			}

			manager := datareset.New(cfg, cliLogger(cmd, cfg))
			if strings.TrimSpace(opts.restoreDir) != "" {
				return runRestore(cmd, manager, opts)
			}
			return ctx.withStore(func(cfg *config.Config, store *logbook.Store) error {
				return runReset(cmd, cfg, manager, store, opts)
			})
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.force, "force", "f", false, "Skip the confirmation prompt")
	flags.BoolVar(&opts.backupOnly, "backup-only", false, "Create a backup and exit without clearing data")
	flags.BoolVar(&opts.noBackup, "no-backup", false, "Clear data without creating a backup first")
	flags.StringVar(&opts.restoreDir, "restore", "", "Restore the database and uploads from a backup directory")
	return cmd
}

func runReset(cmd *cobra.Command, cfg *config.Config, manager *datareset.Manager, store *logbook.Store, opts resetOptions) error {
	out := cmd.OutOrStdout()
	inv, err := manager.Inventory(cmd.Context(), store)
	if err != nil {
		return err
	}
	printInventory(out, inv)

	if opts.backupOnly {
		backup, err := manager.Backup(cmd.Context(), store)
		if err != nil {
			return err
		}
		printBackup(out, backup)
		return nil
	}
	if inv.Empty() {
		fmt.Fprintln(out, "Nothing to reset")
		return nil
	}

	if !opts.force {
		if err := confirmDestructive(cmd, "This permanently deletes every print, parameter, maintenance record and upload file."); err != nil {
			return err
		}
	}

	if !opts.noBackup {
		backup, err := manager.Backup(cmd.Context(), store)
		if err != nil {
			return fmt.Errorf("backup failed, nothing was deleted: %w", err)
		}
		printBackup(out, backup)
	}

	removed, err := manager.Reset(cmd.Context(), store)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Logbook cleared: %d print(s), %d maintenance record(s), %d upload file(s) removed\n",
		inv.Counts.Jobs, inv.Counts.Maintenance, removed)
	return nil
}

func runRestore(cmd *cobra.Command, manager *datareset.Manager, opts resetOptions) error {
	dir, err := config.ExpandPath(opts.restoreDir)
	if err != nil {
		return err
	}
	if !opts.force {
		if err := confirmDestructive(cmd, "Restoring replaces the current database and upload files with "+dir+"."); err != nil {
			return err
		}
	}
	if err := manager.Restore(dir); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored backup from %s\n", dir)
	return nil
}

// confirmDestructive requires the user to type "yes".
func confirmDestructive(cmd *cobra.Command, warning string) error {
	if !isInteractive(cmd) {
		return fmt.Errorf("confirmation needs a terminal; pass --force to skip it")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "WARNING: "+warning)
	reply, err := newPrompter(cmd).answer("Type 'yes' to continue: ")
	if err != nil {
		return err
	}
	if reply != "yes" {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
		return errResetCancelled
	}
	return nil
}

func printInventory(out io.Writer, inv datareset.Inventory) {
	rows := [][]string{
		{"Prints", humanize.Comma(int64(inv.Counts.Jobs))},
		{"Parameters", humanize.Comma(int64(inv.Counts.Parameters))},
		{"Maintenance", humanize.Comma(int64(inv.Counts.Maintenance))},
		{"Upload files", fmt.Sprintf("%s (%s)", humanize.Comma(int64(inv.UploadFiles)), humanize.Bytes(uint64(inv.UploadBytes)))},
	}
	fmt.Fprintf(out, "Database: %s\n", inv.DatabasePath)
	fmt.Fprintf(out, "Uploads:  %s\n", inv.UploadDir)
	fmt.Fprintln(out, renderTable([]string{"Data", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func printBackup(out io.Writer, backup datareset.Backup) {
	fmt.Fprintf(out, "Backup written to %s (database: %s, %d upload file(s), %s)\n",
		backup.Dir, yesNo(backup.DatabaseCopied), backup.UploadFiles, humanize.Bytes(uint64(backup.UploadBytes)))
}
