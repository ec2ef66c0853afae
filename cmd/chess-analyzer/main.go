package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/park285/chess-analyzer/internal/obslog"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = obslog.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "chess-analyzer",
		Usage: "board influence analysis and annotation",
		Commands: []*cli.Command{
			serveCommand(),
			renderCommand(),
			influenceCommand(),
			annotateCommand(),
		},
	}
}
