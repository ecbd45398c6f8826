package domain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultGasLimit is attached to every write call unless the call names its own.
	DefaultGasLimit uint64 = 1_000_000
	// WithdrawAllGasLimit is the lower limit used for withdrawAll.
	WithdrawAllGasLimit uint64 = 100_000
	// OwnerMintGasLimit covers batched ownerMint calls.
	OwnerMintGasLimit uint64 = 8_000_000
)

// Contract function names.
const (
	FnMint                   = "mint"
	FnOwnerMint              = "ownerMint"
	FnSetPrice               = "setPrice"
	FnSetVaultAddress        = "setVaultAddress"
	FnSetRingsAvailable      = "setRingsAvailable"
	FnSetPublicMintStartTime = "setPublicMintStartTime"
	FnSetMintlistStartTime   = "setMintlistStartTime"
	FnSetClaimsStartTime     = "setClaimsStartTime"
	FnWithdraw               = "withdraw"
	FnWithdrawAll            = "withdrawAll"
	FnVault                  = "vault"
	FnGetAvailableRings      = "getAvailableRings"
	FnGetRingPrice           = "getRingPrice"
)

// Category selects the named logger a submission reports under.
type Category string

const (
	CategoryRingMinter Category = "ring-minter"
	CategoryBuyer      Category = "buyer"
)

var ErrInvalidIntent = errors.New("invalid call intent")

// CallIntent describes one state-changing contract call. Values are copied on
// construction so the intent cannot change after it is handed out.
type CallIntent struct {
	function string
	args     []any
	value    *big.Int
	gasLimit uint64
	category Category
}

func NewCallIntent(function string, args []any, value *big.Int, gasLimit uint64, category Category) (CallIntent, error) {
	if function == "" {
		return CallIntent{}, fmt.Errorf("%w: function name is required", ErrInvalidIntent)
	}
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return CallIntent{}, fmt.Errorf("%w: negative value %s", ErrInvalidIntent, value)
	}
	if category == "" {
		category = CategoryRingMinter
	}
	return CallIntent{
		function: function,
		args:     copyArgs(args),
		value:    new(big.Int).Set(value),
		gasLimit: gasLimit,
		category: category,
	}, nil
}

func (i CallIntent) Function() string   { return i.function }
func (i CallIntent) GasLimit() uint64   { return i.gasLimit }
func (i CallIntent) Category() Category { return i.category }

// Args returns a deep copy of the call arguments.
func (i CallIntent) Args() []any {
	return copyArgs(i.args)
}

func copyArgs(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case *big.Int:
			if v != nil {
				arg = new(big.Int).Set(v)
			}
		case []*big.Int:
			values := make([]*big.Int, len(v))
			for j, n := range v {
				if n != nil {
					values[j] = new(big.Int).Set(n)
				}
			}
			arg = values
		case []common.Address:
			arg = append([]common.Address(nil), v...)
		case []byte:
			arg = append([]byte(nil), v...)
		}
		out[i] = arg
	}
	return out
}

func (i CallIntent) Value() *big.Int {
	if i.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(i.value)
}

// WithGasLimit returns a copy of the intent with a different gas limit.
func (i CallIntent) WithGasLimit(gasLimit uint64) CallIntent {
	if gasLimit == 0 {
		return i
	}
	i.gasLimit = gasLimit
	return i
}

// MintIntent pays price×quantity for quantity rings. A single ring is minted
// through the argument-less mint(); larger batches pass the quantity.
func MintIntent(price *big.Int, quantity uint64) (CallIntent, error) {
	if quantity <= 1 {
		if price == nil || price.Sign() < 0 {
			return CallIntent{}, fmt.Errorf("%w: ring price is required", ErrInvalidIntent)
		}
		return NewCallIntent(FnMint, nil, price, DefaultGasLimit, CategoryRingMinter)
	}
	return MintQuantityIntent(price, quantity)
}

// MintQuantityIntent always calls mint(quantity), for contracts without the
// argument-less overload.
func MintQuantityIntent(price *big.Int, quantity uint64) (CallIntent, error) {
	if price == nil || price.Sign() < 0 {
		return CallIntent{}, fmt.Errorf("%w: ring price is required", ErrInvalidIntent)
	}
	if quantity == 0 {
		quantity = 1
	}
	value := new(big.Int).Mul(price, new(big.Int).SetUint64(quantity))
	return NewCallIntent(FnMint, []any{new(big.Int).SetUint64(quantity)}, value, DefaultGasLimit, CategoryRingMinter)
}

func SetPriceIntent(price *big.Int) (CallIntent, error) {
	if price == nil || price.Sign() < 0 {
		return CallIntent{}, fmt.Errorf("%w: price must be non-negative", ErrInvalidIntent)
	}
	return NewCallIntent(FnSetPrice, []any{price}, nil, DefaultGasLimit, CategoryRingMinter)
}

func SetVaultAddressIntent(vault common.Address) (CallIntent, error) {
	if vault == (common.Address{}) {
		return CallIntent{}, fmt.Errorf("%w: vault address is required", ErrInvalidIntent)
	}
	return NewCallIntent(FnSetVaultAddress, []any{vault}, nil, DefaultGasLimit, CategoryRingMinter)
}

func SetRingsAvailableIntent(available *big.Int) (CallIntent, error) {
	if available == nil || available.Sign() < 0 {
		return CallIntent{}, fmt.Errorf("%w: rings available must be non-negative", ErrInvalidIntent)
	}
	return NewCallIntent(FnSetRingsAvailable, []any{available}, nil, DefaultGasLimit, CategoryRingMinter)
}

// StartTimeIntent sets one of the sale phase start times (unix seconds).
func StartTimeIntent(function string, unixSeconds uint64) (CallIntent, error) {
	switch function {
	case FnSetPublicMintStartTime, FnSetMintlistStartTime, FnSetClaimsStartTime:
	default:
		return CallIntent{}, fmt.Errorf("%w: %s is not a start time setter", ErrInvalidIntent, function)
	}
	return NewCallIntent(function, []any{new(big.Int).SetUint64(unixSeconds)}, nil, DefaultGasLimit, CategoryRingMinter)
}

// OwnerMintIntent mints ringTypes[i] to recipients[i] without payment.
func OwnerMintIntent(ringTypes []*big.Int, recipients []common.Address) (CallIntent, error) {
	if len(ringTypes) == 0 {
		return CallIntent{}, fmt.Errorf("%w: at least one ring is required", ErrInvalidIntent)
	}
	if len(ringTypes) != len(recipients) {
		return CallIntent{}, fmt.Errorf("%w: %d ring types for %d recipients", ErrInvalidIntent, len(ringTypes), len(recipients))
	}
	types := make([]*big.Int, len(ringTypes))
	for i, t := range ringTypes {
		if t == nil || t.Sign() < 0 {
			return CallIntent{}, fmt.Errorf("%w: invalid ring type at %d", ErrInvalidIntent, i)
		}
		types[i] = new(big.Int).Set(t)
	}
	addrs := append([]common.Address(nil), recipients...)
	return NewCallIntent(FnOwnerMint, []any{types, addrs}, nil, OwnerMintGasLimit, CategoryRingMinter)
}

func WithdrawIntent(amount *big.Int) (CallIntent, error) {
	if amount == nil || amount.Sign() <= 0 {
		return CallIntent{}, fmt.Errorf("%w: withdraw amount must be positive", ErrInvalidIntent)
	}
	return NewCallIntent(FnWithdraw, []any{amount}, nil, DefaultGasLimit, CategoryBuyer)
}

func WithdrawAllIntent() (CallIntent, error) {
	return NewCallIntent(FnWithdrawAll, nil, nil, WithdrawAllGasLimit, CategoryBuyer)
}
