package application

import (
	"context"
	"errors"
	"testing"

	"ringminter/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	*fakeChain
	closed bool
}

func (c *stubClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return nil, nil
}

func (c *stubClient) Close() { c.closed = true }

func TestOpenSessionConnectionFailureSkipsContract(t *testing.T) {
	loaded := false
	_, err := OpenSession(context.Background(),
		func(ctx context.Context) (ChainClient, error) { return nil, errors.New("dial tcp: refused") },
		func(ChainClient) (MinterContract, error) {
			loaded = true
			return &stubContract{}, nil
		},
	)
	require.ErrorIs(t, err, domain.ErrConnection)
	require.ErrorContains(t, err, "refused")
	require.False(t, loaded)
}

func TestOpenSessionLoadFailureClosesClient(t *testing.T) {
	client := &stubClient{fakeChain: newFakeChain(0)}
	_, err := OpenSession(context.Background(),
		func(ctx context.Context) (ChainClient, error) { return client, nil },
		func(ChainClient) (MinterContract, error) { return nil, errors.New("abi missing") },
	)
	require.ErrorContains(t, err, "abi missing")
	require.NotErrorIs(t, err, domain.ErrConnection)
	require.True(t, client.closed)
}

func TestOpenSession(t *testing.T) {
	client := &stubClient{fakeChain: newFakeChain(0)}
	contract := &stubContract{}
	session, err := OpenSession(context.Background(),
		func(ctx context.Context) (ChainClient, error) { return client, nil },
		func(c ChainClient) (MinterContract, error) {
			require.Same(t, client, c)
			return contract, nil
		},
	)
	require.NoError(t, err)
	require.Same(t, contract, session.Contract)
	session.Close()
	require.True(t, client.closed)
}
