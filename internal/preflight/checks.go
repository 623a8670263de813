package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"rudder/internal/config"
	"rudder/internal/moonraker"
	"rudder/internal/services"
)

// CheckMoonraker verifies the controller answers /printer/info.
func CheckMoonraker(ctx context.Context, client *moonraker.Client) Result {
	const name = "Moonraker"

	if client == nil || strings.TrimSpace(client.BaseURL()) == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	if err := client.Info(ctx); err != nil {
		return Result{Name: name, Detail: summarizeControllerError(client.BaseURL(), err)}
	}
	return Result{Name: name, Passed: true, Detail: client.BaseURL() + " (reachable)"}
}

// CheckMoonrakerFromConfig builds a client from cfg and checks it.
func CheckMoonrakerFromConfig(ctx context.Context, cfg *config.Config) Result {
	return CheckMoonraker(ctx, moonraker.NewFromConfig(cfg))
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeControllerError(baseURL string, err error) string {
	if services.Is(err, services.ErrTimeout) {
		return fmt.Sprintf("%s (error: timed out; controller unresponsive)", baseURL)
	}
	if hint := services.Hint(err); hint != "" {
		return fmt.Sprintf("%s (error: unreachable; %s)", baseURL, hint)
	}
	return fmt.Sprintf("%s (error: %v)", baseURL, err)
}
