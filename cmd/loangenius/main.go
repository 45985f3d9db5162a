// cmd/loangenius/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"loangenius/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(version, nil).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
