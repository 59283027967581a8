// Command consolectl runs console operations against the database directly,
// without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/itops-console/console-backend/shared/utils"
	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

// run keeps deferred cleanup ahead of the process exit
func run() int {
	_ = godotenv.Load()

	// Logs go to stderr so command output stays machine readable
	utils.SetupLogging(os.Stderr, utils.GetEnvOrDefault("LOG_FORMAT", "text"), utils.GetEnvOrDefault("LOG_LEVEL", "warn"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	defer a.close()

	if err := newRootCommand(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
