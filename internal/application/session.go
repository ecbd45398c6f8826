package application

import (
	"context"
	"errors"
	"fmt"

	"ringminter/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

// ChainClient is a live node connection usable for reads and writes.
type ChainClient interface {
	Chain
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	Close()
}

type Connector func(ctx context.Context) (ChainClient, error)

type ContractLoader func(client ChainClient) (MinterContract, error)

// Session is a connected chain client together with the loaded contract.
type Session struct {
	Client   ChainClient
	Contract MinterContract
}

// OpenSession connects first and loads the contract only once the connection
// is up, so a failed connection never leads to a contract call.
func OpenSession(ctx context.Context, connect Connector, load ContractLoader) (*Session, error) {
	if connect == nil || load == nil {
		return nil, errors.New("session dependencies must not be nil")
	}
	client, err := connect(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrConnection) {
			err = fmt.Errorf("%w: %w", domain.ErrConnection, err)
		}
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("%w: connector returned no client", domain.ErrConnection)
	}
	contract, err := load(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("load contract: %w", err)
	}
	return &Session{Client: client, Contract: contract}, nil
}

func (s *Session) Close() {
	if s != nil && s.Client != nil {
		s.Client.Close()
	}
}
