package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ContractStatus is the read-only view of the minter contract.
type ContractStatus struct {
	Vault          common.Address
	RingsAvailable *big.Int
	RingPrice      *big.Int
}
