package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/agentlaunch-dev/agentlaunch/pkg/cli"
	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
	"github.com/agentlaunch-dev/agentlaunch/pkg/printer"
)

func main() {
	// Optional; a missing .env file is not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Root().ExecuteContext(ctx); err != nil {
		report(err)
		os.Exit(errdefs.ExitCode(err))
	}
}

// report renders a failure for the operator: reason, remediation steps,
// and the exit code. User errors stay short; unexpected errors show the
// full chain and ask for a report.
func report(err error) {
	var ue *errdefs.Error
	if !errors.As(err, &ue) {
		printer.PrintError(err.Error())
		return
	}

	if ue.Kind.UserError() {
		printer.PrintError(ue.Reason)
		if ue.Err != nil {
			printer.PrintInfo("Cause: " + printer.TruncateString(ue.Err.Error(), 500))
		}
	} else {
		printer.PrintError(ue.Error())
		printer.PrintInfo("This looks like a system failure; please file a report with the output above.")
	}
	if len(ue.Mitigation) > 0 {
		printer.PrintSteps("To fix this:", ue.Mitigation)
	}
	printer.PrintInfo(fmt.Sprintf("Error code: %d (%s)", ue.Kind.ExitCode(), ue.Kind))
}
