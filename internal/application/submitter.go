package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"ringminter/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Chain is the node connection the submitter writes through.
type Chain interface {
	ChainID(ctx context.Context) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, bool, error)
}

// CallEncoder encodes write calls for one deployed contract.
type CallEncoder interface {
	Address() common.Address
	Pack(function string, args ...any) ([]byte, error)
}

type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// SubmissionRecorder is told about every submission the pipeline makes. Its
// errors are logged and never change the outcome of Submit.
type SubmissionRecorder interface {
	RecordSubmission(ctx context.Context, submission domain.Submission) error
}

type SubmitterConfig struct {
	// ReceiptTimeout bounds the receipt wait. Zero waits until ctx is done.
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

// Submitter runs build, sign, broadcast and receipt wait for one call at a
// time. Submitting concurrently from the same account is not supported: the
// nonce is read fresh for every call without any lock.
type Submitter struct {
	chain    Chain
	signer   TxSigner
	logger   *slog.Logger
	recorder SubmissionRecorder
	cfg      SubmitterConfig
	now      func() time.Time
}

func NewSubmitter(chain Chain, signer TxSigner, logger *slog.Logger, recorder SubmissionRecorder, cfg SubmitterConfig) (*Submitter, error) {
	if chain == nil || signer == nil {
		return nil, errors.New("submitter dependencies must not be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ReceiptTimeout < 0 {
		cfg.ReceiptTimeout = 0
	}
	return &Submitter{
		chain:    chain,
		signer:   signer,
		logger:   logger,
		recorder: recorder,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Submit sends intent to contract and blocks until its receipt is observed.
// It returns the lowercase hex transaction hash.
func (s *Submitter) Submit(ctx context.Context, contract CallEncoder, intent domain.CallIntent) (string, error) {
	if contract == nil {
		return "", wrapStage(StageBuild, intent.Function(), "", errors.New("contract is required"))
	}
	if intent.Function() == "" {
		return "", wrapStage(StageBuild, "", "", domain.ErrInvalidIntent)
	}

	tracer := otel.Tracer("ringminter/submitter")
	ctx, span := tracer.Start(ctx, "submitter.submit", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("contract.function", intent.Function()),
		attribute.String("contract.address", strings.ToLower(contract.Address().Hex())),
		attribute.String("submitter.category", string(intent.Category())),
	)

	from := s.signer.Address()
	record := domain.Submission{
		ID:        uuid.NewString(),
		Function:  intent.Function(),
		Category:  intent.Category(),
		From:      strings.ToLower(from.Hex()),
		To:        strings.ToLower(contract.Address().Hex()),
		Value:     intent.Value().String(),
		Gas:       intent.GasLimit(),
		CreatedAt: s.now().UTC(),
	}

	fail := func(stage Stage, txHash string, err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		record.Status = domain.StatusFailed
		record.Stage = string(stage)
		record.Error = err.Error()
		s.record(ctx, record)
		return "", wrapStage(stage, intent.Function(), txHash, err)
	}

	chainID, err := s.chain.ChainID(ctx)
	if err != nil {
		return fail(StageBuild, "", fmt.Errorf("chain id: %w", err))
	}
	record.ChainID = chainID.Uint64()

	nonce, err := s.chain.NonceAt(ctx, from)
	if err != nil {
		return fail(StageNonce, "", err)
	}
	record.Nonce = nonce
	span.AddEvent("nonce", trace.WithAttributes(attribute.Int64("tx.nonce", int64(nonce))))

	data, err := contract.Pack(intent.Function(), intent.Args()...)
	if err != nil {
		return fail(StageBuild, "", err)
	}
	gasPrice, err := s.chain.SuggestGasPrice(ctx)
	if err != nil {
		return fail(StageBuild, "", fmt.Errorf("gas price: %w", err))
	}
	record.GasPrice = gasPrice.String()

	to := contract.Address()
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      intent.GasLimit(),
		To:       &to,
		Value:    intent.Value(),
		Data:     data,
	})

	signed, err := s.signer.SignTx(tx, chainID)
	if err != nil {
		return fail(StageSign, "", err)
	}
	hash := signed.Hash()
	hashHex := strings.ToLower(hash.Hex())
	record.TxHash = hashHex
	span.SetAttributes(attribute.String("tx.hash", hashHex))

	if err := s.chain.SendTransaction(ctx, signed); err != nil {
		return fail(StageBroadcast, hashHex, fmt.Errorf("%w: %w", domain.ErrTransactionRejected, err))
	}
	span.AddEvent("broadcast")
	record.Status = domain.StatusBroadcast
	s.record(ctx, record)

	receipt, err := s.waitForReceipt(ctx, hash)
	if err != nil {
		return fail(StageReceipt, hashHex, err)
	}

	confirmed := hashHex
	if receipt.TxHash != (common.Hash{}) {
		confirmed = strings.ToLower(receipt.TxHash.Hex())
	}
	record.TxHash = confirmed
	record.Status = domain.StatusConfirmed
	if receipt.Status != types.ReceiptStatusSuccessful {
		record.Status = domain.StatusReverted
	}
	if receipt.BlockNumber != nil {
		record.BlockNumber = receipt.BlockNumber.Uint64()
	}
	record.GasUsed = receipt.GasUsed
	s.record(ctx, record)

	if record.Status == domain.StatusReverted {
		s.logger.Warn("transaction reverted", "hash", confirmed, "function", intent.Function(), "block", record.BlockNumber)
	}
	s.logger.Info("TXN with hash: "+confirmed,
		"function", intent.Function(),
		"nonce", nonce,
		"block", record.BlockNumber,
	)
	return confirmed, nil
}

func (s *Submitter) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var timeout <-chan time.Time
	if s.cfg.ReceiptTimeout > 0 {
		timer := time.NewTimer(s.cfg.ReceiptTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, ok, err := s.chain.TransactionReceipt(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrReceiptWait, err)
		}
		if ok && receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", domain.ErrReceiptWait, ctx.Err())
		case <-timeout:
			return nil, fmt.Errorf("%w: %w after %s", domain.ErrReceiptWait, domain.ErrReceiptTimeout, s.cfg.ReceiptTimeout)
		case <-ticker.C:
		}
	}
}

func (s *Submitter) record(ctx context.Context, submission domain.Submission) {
	if s.recorder == nil {
		return
	}
	submission.UpdatedAt = s.now().UTC()
	if err := s.recorder.RecordSubmission(context.WithoutCancel(ctx), submission); err != nil {
		s.logger.Warn("journal write failed", "hash", submission.TxHash, "status", submission.Status, "err", err)
	}
}
