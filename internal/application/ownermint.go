package application

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// OwnerMintEntry is one row of an owner mint list.
type OwnerMintEntry struct {
	Recipient common.Address
	RingType  *big.Int
}

// ParseOwnerMintList reads "address,ring_type" rows. Blank lines are skipped;
// errors name the line in the input.
func ParseOwnerMintList(r io.Reader) ([]OwnerMintEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entries []OwnerMintEntry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("owner mint list: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("owner mint list line %d: want address,ring_type", line)
		}
		address := strings.TrimSpace(record[0])
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("owner mint list line %d: invalid address %q", line, address)
		}
		ringType, ok := new(big.Int).SetString(strings.TrimSpace(record[1]), 10)
		if !ok || ringType.Sign() < 0 {
			return nil, fmt.Errorf("owner mint list line %d: invalid ring type %q", line, record[1])
		}
		entries = append(entries, OwnerMintEntry{Recipient: common.HexToAddress(address), RingType: ringType})
	}
	return entries, nil
}

type OwnerMintPlan struct {
	// From and To are inclusive, zero based indexes into the list. A negative
	// To runs to the end of the list.
	From      int
	To        int
	BatchSize int
}

// OwnerMintBatches submits entries[From..To] in batches of BatchSize, one
// ownerMint call per batch, and stops at the first failed batch. The hashes of
// the batches that completed are returned together with that error.
func (m *RingMinter) OwnerMintBatches(ctx context.Context, entries []OwnerMintEntry, plan OwnerMintPlan, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if plan.BatchSize <= 0 {
		plan.BatchSize = 1
	}
	from := max(plan.From, 0)
	to := len(entries) - 1
	if plan.To >= 0 && plan.To < to {
		to = plan.To
	}
	if from > to {
		return nil, nil
	}

	var hashes []string
	for start := from; start <= to; start += plan.BatchSize {
		end := min(start+plan.BatchSize-1, to)
		ringTypes := make([]*big.Int, 0, end-start+1)
		recipients := make([]common.Address, 0, end-start+1)
		for i := start; i <= end; i++ {
			ringTypes = append(ringTypes, entries[i].RingType)
			recipients = append(recipients, entries[i].Recipient)
		}
		logger.Info("owner mint batch", "from", start, "to", end, "rings", len(ringTypes))
		hash, err := m.OwnerMint(ctx, ringTypes, recipients)
		if err != nil {
			return hashes, fmt.Errorf("owner mint batch %d-%d: %w", start, end, err)
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}
