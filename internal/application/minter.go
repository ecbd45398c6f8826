package application

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"ringminter/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

// MinterContract is the ring-minter contract as the operations need it.
type MinterContract interface {
	CallEncoder
	CallAddress(ctx context.Context, function string, args ...any) (common.Address, error)
	CallUint(ctx context.Context, function string, args ...any) (*big.Int, error)
}

// MethodChecker is implemented by contracts that can report which overloads
// their ABI declares.
type MethodChecker interface {
	HasMethod(function string, argc int) bool
}

type IntentSubmitter interface {
	Submit(ctx context.Context, contract CallEncoder, intent domain.CallIntent) (string, error)
}

// Submitters holds one submitter per logging category.
type Submitters struct {
	RingMinter IntentSubmitter
	Buyer      IntentSubmitter
}

// RingMinter exposes the contract's operations on top of the submitter.
type RingMinter struct {
	contract   MinterContract
	submitters Submitters
	gasLimit   uint64
}

func NewRingMinter(contract MinterContract, submitters Submitters) (*RingMinter, error) {
	if contract == nil {
		return nil, errors.New("contract is required")
	}
	return &RingMinter{contract: contract, submitters: submitters}, nil
}

func (m *RingMinter) Vault(ctx context.Context) (common.Address, error) {
	return m.contract.CallAddress(ctx, domain.FnVault)
}

func (m *RingMinter) AvailableRings(ctx context.Context) (*big.Int, error) {
	return m.contract.CallUint(ctx, domain.FnGetAvailableRings)
}

func (m *RingMinter) RingPrice(ctx context.Context) (*big.Int, error) {
	return m.contract.CallUint(ctx, domain.FnGetRingPrice)
}

func (m *RingMinter) Status(ctx context.Context) (domain.ContractStatus, error) {
	vault, err := m.Vault(ctx)
	if err != nil {
		return domain.ContractStatus{}, err
	}
	available, err := m.AvailableRings(ctx)
	if err != nil {
		return domain.ContractStatus{}, err
	}
	price, err := m.RingPrice(ctx)
	if err != nil {
		return domain.ContractStatus{}, err
	}
	return domain.ContractStatus{Vault: vault, RingsAvailable: available, RingPrice: price}, nil
}

// Mint buys quantity rings at the price the contract currently asks. A single
// ring uses mint() unless the ABI only declares mint(uint256).
func (m *RingMinter) Mint(ctx context.Context, quantity uint64) (string, error) {
	price, err := m.RingPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("read ring price: %w", err)
	}
	mintIntent := domain.MintIntent
	if checker, ok := m.contract.(MethodChecker); ok && quantity <= 1 && !checker.HasMethod(domain.FnMint, 0) {
		mintIntent = domain.MintQuantityIntent
	}
	intent, err := mintIntent(price, quantity)
	if err != nil {
		return "", err
	}
	return m.Submit(ctx, intent)
}

func (m *RingMinter) SetPrice(ctx context.Context, price *big.Int) (string, error) {
	intent, err := domain.SetPriceIntent(price)
	if err != nil {
		return "", err
	}
	return m.Submit(ctx, intent)
}

func (m *RingMinter) SetVaultAddress(ctx context.Context, vault common.Address) (string, error) {
	intent, err := domain.SetVaultAddressIntent(vault)
	if err != nil {
		return "", err
	}
	return m.Submit(ctx, intent)
}

func (m *RingMinter) SetRingsAvailable(ctx context.Context, available *big.Int) (string, error) {
	intent, err := domain.SetRingsAvailableIntent(available)
	if err != nil {
		return "", err
	}
	return m.Submit(ctx, intent)
}

func (m *RingMinter) SetStartTime(ctx context.Context, function string, unixSeconds uint64) (string, error) {
	intent, err := domain.StartTimeIntent(function, unixSeconds)
	if err != nil {
		return "", err
	}
	return m.Submit(ctx, intent)
}

func (m *RingMinter) OwnerMint(ctx context.Context, ringTypes []*big.Int, recipients []common.Address) (string, error) {
	intent, err := domain.OwnerMintIntent(ringTypes, recipients)
	if err != nil {
		return "", err
	}
	return m.Submit(ctx, intent)
}

func (m *RingMinter) Withdraw(ctx context.Context, amount *big.Int) (string, error) {
	intent, err := domain.WithdrawIntent(amount)
	if err != nil {
		return "", err
	}
	return m.Submit(ctx, intent)
}

func (m *RingMinter) WithdrawAll(ctx context.Context) (string, error) {
	intent, err := domain.WithdrawAllIntent()
	if err != nil {
		return "", err
	}
	return m.Submit(ctx, intent)
}

// SetDefaultGasLimit replaces the gas limit of calls that would otherwise use
// domain.DefaultGasLimit. Calls with their own limit keep it.
func (m *RingMinter) SetDefaultGasLimit(gasLimit uint64) {
	m.gasLimit = gasLimit
}

// Submit routes intent to the submitter for its category.
func (m *RingMinter) Submit(ctx context.Context, intent domain.CallIntent) (string, error) {
	if m.gasLimit != 0 && intent.GasLimit() == domain.DefaultGasLimit {
		intent = intent.WithGasLimit(m.gasLimit)
	}
	var submitter IntentSubmitter
	switch intent.Category() {
	case domain.CategoryBuyer:
		submitter = m.submitters.Buyer
	default:
		submitter = m.submitters.RingMinter
	}
	if submitter == nil {
		return "", fmt.Errorf("no submitter configured for %s", intent.Category())
	}
	return submitter.Submit(ctx, m.contract, intent)
}
