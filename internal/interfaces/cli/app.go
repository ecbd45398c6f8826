// Package cli wires the configuration, journal, node session and submitters
// shared by the command line tools.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"ringminter/internal/application"
	"ringminter/internal/config"
	"ringminter/internal/domain"
	"ringminter/internal/infrastructure/contract"
	"ringminter/internal/infrastructure/ethrpc"
	"ringminter/internal/infrastructure/kafka"
	"ringminter/internal/infrastructure/logging"
	"ringminter/internal/infrastructure/mysql"
	"ringminter/internal/infrastructure/sqlite"
	"ringminter/internal/infrastructure/telemetry"
)

// Options configure Start. Out receives the [INFO] lines and defaults to
// stdout; LogOutput receives the structured log and defaults to stderr.
type Options struct {
	ServiceName string
	Version     string

	Out       io.Writer
	LogOutput io.Writer

	Connect      application.Connector
	LoadContract application.ContractLoader
}

// App is one run of a command line tool.
type App struct {
	Config config.Config
	Logger *slog.Logger
	Signer *application.Signer
	Minter *application.RingMinter

	out      io.Writer
	session  *application.Session
	closers  []io.Closer
	shutdown telemetry.ShutdownFunc
}

// Start builds everything a write command needs. On error every resource
// opened so far is released.
func Start(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	if err := cfg.ValidateChain(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateSigner(); err != nil {
		return nil, err
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	if opts.Connect == nil {
		opts.Connect = DialNode(cfg)
	}
	if opts.LoadContract == nil {
		opts.LoadContract = LoadContract(cfg)
	}

	logger, logCloser, err := logging.New(logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Output:     opts.LogOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	slog.SetDefault(logger)

	app := &App{Config: cfg, Logger: logger, out: opts.Out, closers: []io.Closer{logCloser}}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	shutdown, err := telemetry.InitTracer(ctx, opts.ServiceName, opts.Version, cfg.OtelEndpoint)
	if err != nil {
		logger.Warn("tracing init error", "err", err)
	}
	app.shutdown = shutdown

	signer, err := application.NewSigner(cfg.PrivateKey, cfg.OwnerAddress)
	if err != nil {
		return nil, err
	}
	app.Signer = signer

	recorder := app.openRecorders()

	session, err := application.OpenSession(ctx, opts.Connect, opts.LoadContract)
	if err != nil {
		return nil, err
	}
	app.session = session
	app.Info("Web3 connection successful!")
	logger.Info("connected", "contract", cfg.ContractAddress, "account", signer.Address().Hex())

	submitterCfg := application.SubmitterConfig{
		ReceiptTimeout: cfg.ReceiptTimeout,
		PollInterval:   cfg.ReceiptPollInterval,
	}
	ringMinter, err := application.NewSubmitter(session.Client, signer, logging.Named(logger, domain.CategoryRingMinter), recorder, submitterCfg)
	if err != nil {
		return nil, err
	}
	buyer, err := application.NewSubmitter(session.Client, signer, logging.Named(logger, domain.CategoryBuyer), recorder, submitterCfg)
	if err != nil {
		return nil, err
	}
	minter, err := application.NewRingMinter(session.Contract, application.Submitters{RingMinter: ringMinter, Buyer: buyer})
	if err != nil {
		return nil, err
	}
	minter.SetDefaultGasLimit(cfg.GasLimit)
	app.Minter = minter
	return app, nil
}

// openRecorders opens the configured journal sinks. A sink that cannot be
// opened is skipped with a warning; the journal never blocks a submission.
func (a *App) openRecorders() application.SubmissionRecorder {
	var recorders application.Recorders
	switch a.Config.JournalDriver {
	case "sqlite":
		journal, err := sqlite.NewJournal(a.Config.JournalDSN)
		if err != nil {
			a.Logger.Warn("journal disabled", "driver", "sqlite", "err", err)
			break
		}
		a.closers = append(a.closers, journal)
		recorders = append(recorders, journal)
	case "mysql":
		journal, err := mysql.NewJournal(a.Config.JournalDSN)
		if err != nil {
			a.Logger.Warn("journal disabled", "driver", "mysql", "err", err)
			break
		}
		cached, err := mysql.NewCachedJournal(journal, mysql.CacheConfig{Addr: a.Config.RedisAddr})
		if err != nil {
			a.Logger.Warn("journal cache disabled", "err", err)
			a.closers = append(a.closers, journal)
			recorders = append(recorders, journal)
			break
		}
		a.closers = append(a.closers, cached)
		recorders = append(recorders, cached)
	}
	if len(a.Config.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: a.Config.KafkaBrokers, Topic: a.Config.KafkaTopic})
		if err != nil {
			a.Logger.Warn("submission stream disabled", "err", err)
		} else {
			a.closers = append(a.closers, producer)
			recorders = append(recorders, producer)
		}
	}
	if len(recorders) == 0 {
		return nil
	}
	return recorders
}

// Info prints one "[INFO] ..." line for the operator.
func (a *App) Info(format string, args ...any) {
	fmt.Fprintf(a.out, "[INFO] "+format+"\n", args...)
}

// PrintStatus reads and prints the vault, rings available and ring price.
func (a *App) PrintStatus(ctx context.Context) error {
	status, err := a.Minter.Status(ctx)
	if err != nil {
		return err
	}
	a.Info("Vault address: %s", status.Vault.Hex())
	a.Info("Rings available: %s", status.RingsAvailable)
	a.Info("Ring price: %s", status.RingPrice)
	return nil
}

// Close releases the node connection, journals and log file and flushes
// pending spans.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.session.Close()
	a.session = nil
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdown(ctx); err != nil && a.Logger != nil {
			a.Logger.Warn("tracing shutdown error", "err", err)
		}
		cancel()
		a.shutdown = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && a.Logger != nil {
			a.Logger.Warn("close error", "err", err)
		}
	}
	a.closers = nil
}

// DialNode connects to the provider configured in cfg.
func DialNode(cfg config.Config) application.Connector {
	return func(ctx context.Context) (application.ChainClient, error) {
		client, err := ethrpc.Connect(ctx, ethrpc.Config{URL: cfg.ProviderURL()})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// LoadContract binds the configured address and ABI to client.
func LoadContract(cfg config.Config) application.ContractLoader {
	return func(client application.ChainClient) (application.MinterContract, error) {
		c, err := contract.Load(client, cfg.ContractAddress, cfg.ContractABI)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
