package preflight

import (
	"context"
	"fmt"

	"rudder/internal/moonraker"
)

// PrinterProbe is a one-off snapshot of the controller's print state.
type PrinterProbe struct {
	Reachable bool
	State     string
	Filename  string
	Error     string
}

// ProbePrinter asks the controller for its current print state.
func ProbePrinter(ctx context.Context, client *moonraker.Client) PrinterProbe {
	status, err := client.Status(ctx)
	if err != nil {
		return PrinterProbe{Error: err.Error()}
	}
	return PrinterProbe{Reachable: true, State: status.State, Filename: status.Filename}
}

// Detail renders a display-friendly summary for status output.
func (p PrinterProbe) Detail() string {
	switch {
	case !p.Reachable:
		return "Unreachable"
	case p.State == moonraker.StatePrinting && p.Filename != "":
		return fmt.Sprintf("Printing '%s'", p.Filename)
	case p.State == "":
		return "Unknown state"
	default:
		return p.State
	}
}
