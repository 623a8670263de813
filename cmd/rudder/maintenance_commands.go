package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"rudder/internal/config"
	"rudder/internal/logbook"
)

func newMaintenanceCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "maintenance",
		Aliases: []string{"maint"},
		Short:   "List and record printer maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *logbook.Store) error {
				events, err := store.ListMaintenance(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					if events == nil {
						events = []*logbook.MaintenanceEvent{}
					}
					return writeJSON(cmd, events)
				}
				out := cmd.OutOrStdout()
				if len(events) == 0 {
					fmt.Fprintln(out, "No maintenance recorded")
					return nil
				}
				rows := make([][]string, 0, len(events))
				for _, e := range events {
					rows = append(rows, []string{
						strconv.FormatInt(e.ID, 10),
						stampLabel(e.Timestamp),
						truncate(e.Description, 60),
						textLabel(truncate(e.TodoTasks, 40)),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "When", "Description", "To do"}, rows,
					[]columnAlignment{alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	cmd.AddCommand(newMaintenanceAddCommand(ctx))
	cmd.AddCommand(newMaintenanceUpdateCommand(ctx))
	return cmd
}

func newMaintenanceAddCommand(ctx *commandContext) *cobra.Command {
	var todo string
	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Record a maintenance event",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.Join(args, " ")
			return ctx.withStore(func(_ *config.Config, store *logbook.Store) error {
				id, err := store.CreateMaintenance(cmd.Context(), description, todo)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded maintenance %d\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&todo, "todo", "", "Follow-up tasks")
	return cmd
}

func newMaintenanceUpdateCommand(ctx *commandContext) *cobra.Command {
	var description, todo string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a maintenance event's description or tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var update logbook.MaintenanceUpdate
			if cmd.Flags().Changed("description") {
				update.Description = &description
			}
			if cmd.Flags().Changed("todo") {
				update.TodoTasks = &todo
			}
			if update.Description == nil && update.TodoTasks == nil {
				return fmt.Errorf("nothing to update; pass --description or --todo")
			}
			return ctx.withStore(func(_ *config.Config, store *logbook.Store) error {
				if err := store.UpdateMaintenance(cmd.Context(), id, update); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Maintenance %d updated\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&todo, "todo", "", "New follow-up tasks")
	return cmd
}
