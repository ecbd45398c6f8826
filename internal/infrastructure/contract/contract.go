// Package contract exposes a deployed contract through its ABI: read calls are
// executed with eth_call and write calls are encoded for the submitter.
package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller executes read-only calls against the chain.
type Caller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

type Contract struct {
	address common.Address
	abi     abi.ABI
	caller  Caller
}

var ErrUnknownMethod = errors.New("method not found in abi")

// Load reads the ABI at abiPath and binds it to address. The file may hold a
// bare ABI array or a build artifact with an "abi" field.
func Load(caller Caller, address string, abiPath string) (*Contract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}
	raw, err := os.ReadFile(abiPath)
	if err != nil {
		return nil, fmt.Errorf("read abi: %w", err)
	}
	parsed, err := ParseABI(raw)
	if err != nil {
		return nil, err
	}
	return New(common.HexToAddress(address), parsed, caller), nil
}

func New(address common.Address, parsed abi.ABI, caller Caller) *Contract {
	return &Contract{address: address, abi: parsed, caller: caller}
}

// ParseABI accepts either a JSON ABI array or an artifact object carrying one.
func ParseABI(raw []byte) (abi.ABI, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return abi.ABI{}, errors.New("abi is empty")
	}
	if trimmed[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(trimmed, &artifact); err != nil {
			return abi.ABI{}, fmt.Errorf("decode abi artifact: %w", err)
		}
		if len(artifact.ABI) == 0 {
			return abi.ABI{}, errors.New("abi artifact has no abi field")
		}
		trimmed = artifact.ABI
	}
	parsed, err := abi.JSON(bytes.NewReader(trimmed))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}
	return parsed, nil
}

func (c *Contract) Address() common.Address {
	return c.address
}

// Pack encodes a call to function with args. Overloaded functions are
// resolved by argument count.
func (c *Contract) Pack(function string, args ...any) ([]byte, error) {
	method, err := c.method(function, len(args))
	if err != nil {
		return nil, err
	}
	encoded, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", function, err)
	}
	return append(append([]byte{}, method.ID...), encoded...), nil
}

// Call runs a read-only call and returns the decoded outputs.
func (c *Contract) Call(ctx context.Context, function string, args ...any) ([]any, error) {
	if c.caller == nil {
		return nil, errors.New("contract has no caller")
	}
	method, err := c.method(function, len(args))
	if err != nil {
		return nil, err
	}
	data, err := c.Pack(function, args...)
	if err != nil {
		return nil, err
	}
	output, err := c.caller.CallContract(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", function, err)
	}
	values, err := method.Outputs.Unpack(output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", function, err)
	}
	return values, nil
}

func (c *Contract) CallAddress(ctx context.Context, function string, args ...any) (common.Address, error) {
	values, err := c.Call(ctx, function, args...)
	if err != nil {
		return common.Address{}, err
	}
	if len(values) == 0 {
		return common.Address{}, fmt.Errorf("%s returned no values", function)
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s returned %T, want address", function, values[0])
	}
	return addr, nil
}

func (c *Contract) CallUint(ctx context.Context, function string, args ...any) (*big.Int, error) {
	values, err := c.Call(ctx, function, args...)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", function)
	}
	switch v := values[0].(type) {
	case *big.Int:
		return v, nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("%s returned %T, want unsigned integer", function, values[0])
	}
}

// HasMethod reports whether the ABI declares function with argc inputs.
func (c *Contract) HasMethod(function string, argc int) bool {
	_, err := c.method(function, argc)
	return err == nil
}

func (c *Contract) method(function string, argc int) (abi.Method, error) {
	if m, ok := c.abi.Methods[function]; ok && len(m.Inputs) == argc {
		return m, nil
	}
	names := make([]string, 0, len(c.abi.Methods))
	for name := range c.abi.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := c.abi.Methods[name]
		if m.RawName == function && len(m.Inputs) == argc {
			return m, nil
		}
	}
	return abi.Method{}, fmt.Errorf("%w: %s with %d arguments", ErrUnknownMethod, function, argc)
}
