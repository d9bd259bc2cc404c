package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"crmagent/internal/cli"
	"crmagent/internal/runner"
	"crmagent/pkg/logger"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	lg := logger.New(os.Stderr, "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	opts := cli.Options{Version: buildVersion(), LogWriter: os.Stderr}
	err := cli.Run(ctx, opts, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		lg.Error("command failed", "err", err)
		os.Exit(exitCode(err))
	}
}

// exitCode повторяет код выхода внешнего CLI, если ошибка пришла от него.
func exitCode(err error) int {
	var cmdErr *runner.ExternalCommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return cmdErr.ExitCode
	}
	return 1
}

func buildVersion() string {
	v := version
	if commit != "" {
		v += " (" + commit + ")"
	}
	if date != "" {
		v += " " + date
	}
	return v
}
