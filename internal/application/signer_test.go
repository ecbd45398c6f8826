package application

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"ringminter/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestNewSignerOwnerCheck(t *testing.T) {
	signer, secret := newTestSigner(t)

	same, err := NewSigner(secret, strings.ToLower(signer.Address().Hex()))
	require.NoError(t, err)
	require.Equal(t, signer.Address(), same.Address())

	withPrefix, err := NewSigner(domain.NewSecret("0x"+secret.Reveal()), "")
	require.NoError(t, err)
	require.Equal(t, signer.Address(), withPrefix.Address())

	_, err = NewSigner(secret, "0x00000000000000000000000000000000000000ff")
	require.ErrorIs(t, err, domain.ErrSignerMismatch)
}

func TestNewSignerNeverLeaksKey(t *testing.T) {
	secret := domain.NewSecret("zz-not-a-key")
	_, err := NewSigner(secret, "")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "zz-not-a-key")

	_, err = NewSigner(domain.Secret{}, "")
	require.Error(t, err)

	signer, key := newTestSigner(t)
	require.NotContains(t, fmt.Sprintf("%v %+v %#v", signer, signer, signer), key.Reveal())
}

func TestSignTx(t *testing.T) {
	signer, _ := newTestSigner(t)
	to := common.HexToAddress("0x01")
	tx := types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21_000, GasPrice: big.NewInt(1), To: &to, Value: big.NewInt(5)})

	signed, err := signer.SignTx(tx, testChainID)
	require.NoError(t, err)
	sender, err := types.Sender(types.LatestSignerForChainID(testChainID), signed)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), sender)
	require.Equal(t, testChainID.String(), signed.ChainId().String())

	_, err = signer.SignTx(tx, nil)
	require.Error(t, err)
}
