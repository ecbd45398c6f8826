package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
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
	fs := pflag.NewFlagSet("withdraw", pflag.ContinueOnError)
	amountFlag := fs.String("amount", "", "amount to withdraw in wei")
	all := fs.Bool("all", false, "withdraw the whole contract balance")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	amount, err := parseAmount(*amountFlag, *all)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := cli.Start(ctx, cfg, cli.Options{ServiceName: "ringminter-withdraw", Version: version})
	if err != nil {
		slog.Error("startup error", "err", err)
		os.Exit(cli.ExitCode(err))
	}
	app.Logger.Debug("build", "version", version, "commit", commit, "build_time", buildTime)

	var hash string
	if amount == nil {
		hash, err = app.Minter.WithdrawAll(ctx)
	} else {
		hash, err = app.Minter.Withdraw(ctx, amount)
	}
	if err == nil {
		app.Info("Transaction receipt: %s", hash)
	}
	app.Close()
	if err != nil {
		slog.Error("withdraw failed", "err", err)
		os.Exit(cli.ExitCode(err))
	}
}

// parseAmount returns nil for --all.
func parseAmount(raw string, all bool) (*big.Int, error) {
	switch {
	case all && raw != "":
		return nil, errors.New("--amount and --all are mutually exclusive")
	case all:
		return nil, nil
	case raw == "":
		return nil, errors.New("one of --amount or --all is required")
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid --amount %q", raw)
	}
	return amount, nil
}
