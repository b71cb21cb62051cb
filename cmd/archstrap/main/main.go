package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/arthur-debert/archstrap/cmd/archstrap"
	"github.com/arthur-debert/archstrap/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := archstrap.NewRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	archstrap.ReportError(os.Stderr, err)
	stop()
	os.Exit(errors.ExitCode(err))
}
