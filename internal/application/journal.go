package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ringminter/internal/domain"
	"ringminter/internal/streaming"
)

type JournalRepository interface {
	UpsertSubmissions(ctx context.Context, submissions []domain.Submission) error
}

// JournalStore is the read side served over HTTP.
type JournalStore interface {
	QuerySubmissions(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error)
	GetSubmission(ctx context.Context, txHash string) (domain.Submission, bool, error)
	CountByStatus(ctx context.Context) (map[domain.SubmissionStatus]uint64, error)
	Ping(ctx context.Context) error
}

func ApplyMessage(ctx context.Context, repo JournalRepository, msg streaming.Message) error {
	slog.Debug("consume submission",
		"type", msg.Type,
		"id", msg.ID,
		"chain_id", msg.ChainID,
		"tx_hash", msg.TxHash,
	)

	if repo == nil {
		return errors.New("journal repository is required")
	}
	if !msg.Type.Valid() {
		return errors.New("unknown message type")
	}
	return repo.UpsertSubmissions(ctx, []domain.Submission{MapToSubmission(msg)})
}

func MapToSubmission(msg streaming.Message) domain.Submission {
	return domain.Submission{
		ID:          msg.ID,
		ChainID:     msg.ChainID,
		TxHash:      msg.TxHash,
		Function:    msg.Function,
		Category:    domain.Category(msg.Category),
		From:        msg.From,
		To:          msg.To,
		Nonce:       msg.Nonce,
		Value:       msg.Value,
		Gas:         msg.Gas,
		GasPrice:    msg.GasPrice,
		Status:      domain.SubmissionStatus(msg.Type),
		Stage:       msg.Stage,
		Error:       msg.Error,
		BlockNumber: msg.BlockNumber,
		GasUsed:     msg.GasUsed,
		CreatedAt:   fromUnixMilli(msg.CreatedAt),
		UpdatedAt:   fromUnixMilli(msg.UpdatedAt),
	}
}

func MapToMessage(s domain.Submission) streaming.Message {
	return streaming.Message{
		Type:        streaming.MessageType(s.Status),
		ID:          s.ID,
		ChainID:     s.ChainID,
		TxHash:      s.TxHash,
		Function:    s.Function,
		Category:    string(s.Category),
		From:        s.From,
		To:          s.To,
		Nonce:       s.Nonce,
		Value:       s.Value,
		Gas:         s.Gas,
		GasPrice:    s.GasPrice,
		Stage:       s.Stage,
		Error:       s.Error,
		BlockNumber: s.BlockNumber,
		GasUsed:     s.GasUsed,
		CreatedAt:   toUnixMilli(s.CreatedAt),
		UpdatedAt:   toUnixMilli(s.UpdatedAt),
	}
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func toUnixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
