package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ringminter/internal/config"
	"ringminter/internal/interfaces/cli"

	"github.com/spf13/pflag"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	fs := pflag.NewFlagSet("mint", pflag.ContinueOnError)
	quantity := fs.Uint64("quantity", 1, "number of rings to mint")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *quantity == 0 {
		fmt.Fprintln(os.Stderr, "--quantity must be positive")
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := cli.Start(ctx, cfg, cli.Options{ServiceName: "ringminter-mint", Version: version})
	if err != nil {
		slog.Error("startup error", "err", err)
		os.Exit(cli.ExitCode(err))
	}
	app.Logger.Debug("build", "version", version, "commit", commit, "build_time", buildTime)

	err = run(ctx, app, *quantity)
	app.Close()
	if err != nil {
		slog.Error("mint failed", "err", err)
		os.Exit(cli.ExitCode(err))
	}
}

func run(ctx context.Context, app *cli.App, quantity uint64) error {
	if err := app.PrintStatus(ctx); err != nil {
		return err
	}
	hash, err := app.Minter.Mint(ctx, quantity)
	if err != nil {
		return err
	}
	app.Info("Transaction receipt: %s", hash)

	available, err := app.Minter.AvailableRings(ctx)
	if err != nil {
		return err
	}
	app.Info("Rings available: %s", available)
	return nil
}
