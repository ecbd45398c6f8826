package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ringminter/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	Network             string
	APIKey              domain.Secret
	RPCURL              string
	PrivateKey          domain.Secret
	OwnerAddress        string
	ContractAddress     string
	ContractABI         string
	GasLimit            uint64
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
	LogLevel            string
	LogFile             string
	LogMaxSizeMB        int
	LogMaxBackups       int
	JournalDriver       string
	JournalDSN          string
	JournalBatchSize    int
	JournalFlush        time.Duration
	RedisAddr           string
	KafkaBrokers        []string
	KafkaTopic          string
	KafkaGroupID        string
	OtelEndpoint        string
	HTTPAddr            string
}

// ProviderURL returns the explicit RPC URL when set, otherwise the hosted
// provider endpoint for Network authenticated with APIKey.
func (c Config) ProviderURL() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	if c.Network == "" || c.APIKey.Empty() {
		return ""
	}
	return fmt.Sprintf("https://%s.infura.io/v3/%s", c.Network, c.APIKey.Reveal())
}

// ValidateChain reports whether the settings needed to reach the contract are present.
func (c Config) ValidateChain() error {
	if c.ProviderURL() == "" {
		return errors.New("RPC_URL or NETWORK and API_KEY are required")
	}
	if c.ContractAddress == "" {
		return errors.New("CONTRACT_ADDRESS is required")
	}
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("invalid CONTRACT_ADDRESS %q", c.ContractAddress)
	}
	if c.ContractABI == "" {
		return errors.New("CONTRACT_ABI is required")
	}
	return nil
}

// ValidateSigner reports whether a transaction signer can be built.
func (c Config) ValidateSigner() error {
	if c.PrivateKey.Empty() {
		return errors.New("PRIVATE_KEY is required")
	}
	if c.OwnerAddress != "" && !common.IsHexAddress(c.OwnerAddress) {
		return fmt.Errorf("invalid OWNER_ADDRESS %q", c.OwnerAddress)
	}
	return nil
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	gasLimit, err := parseUintEnv(source, "GAS_LIMIT", domain.DefaultGasLimit)
	if err != nil {
		return Config{}, err
	}
	if gasLimit == 0 {
		return Config{}, errors.New("GAS_LIMIT must be positive")
	}
	receiptTimeout, err := parseDurationEnv(source, "RECEIPT_TIMEOUT", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := parseDurationEnv(source, "RECEIPT_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	if pollInterval <= 0 {
		return Config{}, errors.New("RECEIPT_POLL_INTERVAL must be positive")
	}
	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	journalDriver := strings.ToLower(lookupTrimmed(source, "JOURNAL_DRIVER", "sqlite"))
	switch journalDriver {
	case "sqlite", "mysql", "none":
	default:
		return Config{}, fmt.Errorf("invalid JOURNAL_DRIVER %q", journalDriver)
	}
	if journalDriver == "none" {
		journalDriver = ""
	}
	journalDSN := lookupTrimmed(source, "JOURNAL_DSN", "")
	if journalDSN == "" {
		switch journalDriver {
		case "sqlite":
			journalDSN = "data/journal.db"
		case "mysql":
			journalDSN = "root:@tcp(127.0.0.1:3306)/ringminter?parseTime=true"
		}
	}

	batchSize, err := parseUintEnv(source, "JOURNAL_BATCH_SIZE", 100)
	if err != nil {
		return Config{}, err
	}
	flushInterval, err := parseDurationEnv(source, "JOURNAL_FLUSH_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}

	kafkaBrokers := parseList(source, "KAFKA_BROKERS")

	privateKey := strings.TrimPrefix(lookupTrimmed(source, "PRIVATE_KEY", ""), "0x")

	return Config{
		Network:             lookupTrimmed(source, "NETWORK", "sepolia"),
		APIKey:              domain.NewSecret(lookupTrimmed(source, "API_KEY", "")),
		RPCURL:              lookupTrimmed(source, "RPC_URL", ""),
		PrivateKey:          domain.NewSecret(privateKey),
		OwnerAddress:        lookupTrimmed(source, "OWNER_ADDRESS", ""),
		ContractAddress:     lookupTrimmed(source, "CONTRACT_ADDRESS", ""),
		ContractABI:         lookupTrimmed(source, "CONTRACT_ABI", ""),
		GasLimit:            gasLimit,
		ReceiptTimeout:      receiptTimeout,
		ReceiptPollInterval: pollInterval,
		LogLevel:            lookupTrimmed(source, "LOG_LEVEL", "info"),
		LogFile:             lookupTrimmed(source, "LOG_FILE", ""),
		LogMaxSizeMB:        int(logMaxSize),
		LogMaxBackups:       int(logMaxBackups),
		JournalDriver:       journalDriver,
		JournalDSN:          journalDSN,
		JournalBatchSize:    int(batchSize),
		JournalFlush:        flushInterval,
		RedisAddr:           lookupTrimmed(source, "REDIS_ADDR", ""),
		KafkaBrokers:        kafkaBrokers,
		KafkaTopic:          lookupTrimmed(source, "KAFKA_TOPIC", "ringminter-submissions"),
		KafkaGroupID:        lookupTrimmed(source, "KAFKA_GROUP_ID", "ringminter-journal"),
		OtelEndpoint:        lookupTrimmed(source, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		HTTPAddr:            lookupTrimmed(source, "HTTP_ADDR", ":8080"),
	}, nil
}

func lookupTrimmed(source EnvSource, key, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(strings.ReplaceAll(raw, "_", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	if raw == "0" {
		return 0, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration", key)
	}
	return value, nil
}

func parseList(source EnvSource, key string) []string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	return values
}
