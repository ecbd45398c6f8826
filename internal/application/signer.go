package application

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"ringminter/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the account key material. The key is parsed only while a
// transaction is being signed.
type Signer struct {
	key   domain.Secret
	owner common.Address
}

// NewSigner validates key and, when owner is non-empty, checks that the key
// controls that address.
func NewSigner(key domain.Secret, owner string) (*Signer, error) {
	if key.Empty() {
		return nil, errors.New("private key is required")
	}
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(key.Reveal(), "0x"))
	if err != nil {
		return nil, errors.New("parse private key: invalid key material")
	}
	derived := crypto.PubkeyToAddress(priv.PublicKey)
	if owner != "" {
		if !common.IsHexAddress(owner) {
			return nil, fmt.Errorf("invalid owner address %q", owner)
		}
		if common.HexToAddress(owner) != derived {
			return nil, fmt.Errorf("%w: key controls %s, owner is %s", domain.ErrSignerMismatch, derived.Hex(), owner)
		}
	}
	return &Signer{key: key, owner: derived}, nil
}

func (s *Signer) Address() common.Address {
	return s.owner
}

// SignTx signs tx for chainID using the latest signer rules for that chain.
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if tx == nil {
		return nil, errors.New("transaction is required")
	}
	if chainID == nil {
		return nil, errors.New("chain id is required")
	}
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(s.key.Reveal(), "0x"))
	if err != nil {
		return nil, errors.New("parse private key: invalid key material")
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), priv)
}

func (s *Signer) String() string {
	return "signer(" + s.owner.Hex() + ")"
}

func (s *Signer) GoString() string {
	return s.String()
}
