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

	"ringminter/internal/application"
	"ringminter/internal/config"
	"ringminter/internal/domain"
	"ringminter/internal/interfaces/cli"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// options holds the parsed flags. Setter values are validated here, before
// any transaction is sent, so a typo never leaves the contract half updated.
type options struct {
	price           *big.Int
	vault           *common.Address
	ringsAvailable  *big.Int
	publicMintStart uint64
	mintlistStart   uint64
	claimsStart     uint64
	ownerMintCSV    string
	from            int
	to              int
	batchSize       int
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
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

	app, err := cli.Start(ctx, cfg, cli.Options{ServiceName: "ringminter-setup", Version: version})
	if err != nil {
		slog.Error("startup error", "err", err)
		os.Exit(cli.ExitCode(err))
	}
	app.Logger.Debug("build", "version", version, "commit", commit, "build_time", buildTime)

	err = run(ctx, app, opts)
	app.Close()
	if err != nil {
		slog.Error("setup failed", "err", err)
		os.Exit(cli.ExitCode(err))
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	var price, vault, ringsAvailable string
	fs := pflag.NewFlagSet("setup", pflag.ContinueOnError)
	fs.StringVar(&price, "price", "", "new ring price in wei")
	fs.StringVar(&vault, "vault", "", "new vault address")
	fs.StringVar(&ringsAvailable, "rings-available", "", "number of rings available for sale")
	fs.Uint64Var(&opts.publicMintStart, "public-mint-start", 0, "public mint start time (unix seconds)")
	fs.Uint64Var(&opts.mintlistStart, "mintlist-start", 0, "mintlist start time (unix seconds)")
	fs.Uint64Var(&opts.claimsStart, "claims-start", 0, "claims start time (unix seconds)")
	fs.StringVar(&opts.ownerMintCSV, "owner-mint-csv", "", "CSV of address,ring_type rows to owner mint")
	fs.IntVar(&opts.from, "from", 0, "first CSV row to mint (zero based)")
	fs.IntVar(&opts.to, "to", -1, "last CSV row to mint, -1 for the end of the list")
	fs.IntVar(&opts.batchSize, "batch-size", 50, "rings per ownerMint transaction")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.batchSize <= 0 {
		return options{}, errors.New("--batch-size must be positive")
	}

	var err error
	if opts.price, err = parseWei("--price", price); err != nil {
		return options{}, err
	}
	if opts.ringsAvailable, err = parseWei("--rings-available", ringsAvailable); err != nil {
		return options{}, err
	}
	if vault != "" {
		if !common.IsHexAddress(vault) {
			return options{}, fmt.Errorf("invalid --vault %q", vault)
		}
		addr := common.HexToAddress(vault)
		if addr == (common.Address{}) {
			return options{}, errors.New("--vault must not be the zero address")
		}
		opts.vault = &addr
	}
	return opts, nil
}

// parseWei parses a non-negative base 10 integer; empty means unset.
func parseWei(flag, raw string) (*big.Int, error) {
	if raw == "" {
		return nil, nil
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q", flag, raw)
	}
	return value, nil
}

func (o options) changes() bool {
	return o.price != nil || o.vault != nil || o.ringsAvailable != nil ||
		o.publicMintStart != 0 || o.mintlistStart != 0 || o.claimsStart != 0 ||
		o.ownerMintCSV != ""
}

func run(ctx context.Context, app *cli.App, opts options) error {
	if err := app.PrintStatus(ctx); err != nil {
		return err
	}
	if !opts.changes() {
		return nil
	}

	var entries []application.OwnerMintEntry
	if opts.ownerMintCSV != "" {
		var err error
		if entries, err = readOwnerMintList(opts.ownerMintCSV); err != nil {
			return err
		}
		app.Info("Owner mint list: %d entries", len(entries))
	}

	if opts.vault != nil {
		hash, err := app.Minter.SetVaultAddress(ctx, *opts.vault)
		if err != nil {
			return err
		}
		app.Info("Transaction receipt (setVaultAddress): %s", hash)
	}
	if opts.price != nil {
		hash, err := app.Minter.SetPrice(ctx, opts.price)
		if err != nil {
			return err
		}
		app.Info("Transaction receipt (setPrice): %s", hash)
	}
	if opts.ringsAvailable != nil {
		hash, err := app.Minter.SetRingsAvailable(ctx, opts.ringsAvailable)
		if err != nil {
			return err
		}
		app.Info("Transaction receipt (setRingsAvailable): %s", hash)
	}

	startTimes := []struct {
		function string
		value    uint64
	}{
		{domain.FnSetPublicMintStartTime, opts.publicMintStart},
		{domain.FnSetMintlistStartTime, opts.mintlistStart},
		{domain.FnSetClaimsStartTime, opts.claimsStart},
	}
	for _, st := range startTimes {
		if st.value == 0 {
			continue
		}
		hash, err := app.Minter.SetStartTime(ctx, st.function, st.value)
		if err != nil {
			return err
		}
		app.Info("Transaction receipt (%s): %s", st.function, hash)
	}

	if opts.ownerMintCSV != "" {
		if err := ownerMint(ctx, app, entries, opts); err != nil {
			return err
		}
	}

	return app.PrintStatus(ctx)
}

func readOwnerMintList(path string) ([]application.OwnerMintEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return application.ParseOwnerMintList(f)
}

func ownerMint(ctx context.Context, app *cli.App, entries []application.OwnerMintEntry, opts options) error {
	hashes, err := app.Minter.OwnerMintBatches(ctx, entries, application.OwnerMintPlan{
		From:      opts.from,
		To:        opts.to,
		BatchSize: opts.batchSize,
	}, app.Logger)
	for _, hash := range hashes {
		app.Info("Transaction receipt (ownerMint): %s", hash)
	}
	return err
}
