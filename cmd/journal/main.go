package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ringminter/internal/application"
	"ringminter/internal/config"
	"ringminter/internal/infrastructure/ethrpc"
	"ringminter/internal/infrastructure/kafka"
	"ringminter/internal/infrastructure/logging"
	"ringminter/internal/infrastructure/mysql"
	"ringminter/internal/infrastructure/sqlite"
	"ringminter/internal/infrastructure/telemetry"
	"ringminter/internal/interfaces/httpapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

type journalBackend interface {
	application.JournalRepository
	application.JournalStore
	io.Closer
}

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "logs/journal.log"
	}
	logger, logCloser, err := logging.New(logging.Config{
		Level:      cfg.LogLevel,
		File:       logFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		slog.Error("logger init error", "err", err)
	} else {
		slog.SetDefault(logger)
		defer logCloser.Close()
	}

	if len(cfg.KafkaBrokers) == 0 {
		slog.Error("KAFKA_BROKERS is required for the journal service")
		os.Exit(1)
	}

	journal, err := openJournal(cfg)
	if err != nil {
		slog.Error("journal error", "driver", cfg.JournalDriver, "err", err)
		os.Exit(1)
	}
	defer journal.Close()

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "ringminter-journal", version, cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				slog.Warn("tracing shutdown error", "err", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var rpc httpapi.RPCStatus
	if cfg.ProviderURL() != "" {
		client, err := ethrpc.Connect(ctx, ethrpc.Config{URL: cfg.ProviderURL()})
		if err != nil {
			slog.Warn("rpc unavailable, readiness will skip the node", "err", err)
		} else {
			defer client.Close()
			rpc = client
		}
	}

	metrics := httpapi.NewMetrics()
	httpServer, err := httpapi.NewServer(journal, rpc, metrics, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		slog.Error("http server error", "err", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("http server error", "err", err)
			cancel()
		}
	}()

	reader, err := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroupID,
	})
	if err != nil {
		slog.Error("kafka reader error", "err", err)
		os.Exit(1)
	}
	defer reader.Close()

	slog.Info("journal consumer started", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID, "driver", cfg.JournalDriver)
	if err := kafka.Consume(ctx, reader, journal, httpServer.MetricsObserver(), kafka.ConsumerConfig{
		BatchSize:     cfg.JournalBatchSize,
		FlushInterval: cfg.JournalFlush,
	}); err != nil {
		slog.Error("consumer error", "err", err)
	}
	slog.Info("journal consumer stopped")
}

func openJournal(cfg config.Config) (journalBackend, error) {
	switch cfg.JournalDriver {
	case "mysql":
		base, err := mysql.NewJournal(cfg.JournalDSN)
		if err != nil {
			return nil, err
		}
		cached, err := mysql.NewCachedJournal(base, mysql.CacheConfig{Addr: cfg.RedisAddr})
		if err != nil {
			slog.Warn("journal cache disabled", "err", err)
			return base, nil
		}
		return cached, nil
	case "sqlite":
		journal, err := sqlite.NewJournal(cfg.JournalDSN)
		if err != nil {
			return nil, err
		}
		return journal, nil
	default:
		return nil, errors.New("JOURNAL_DRIVER must be mysql or sqlite")
	}
}
