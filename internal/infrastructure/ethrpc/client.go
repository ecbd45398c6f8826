package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"sync"
	"time"

	"ringminter/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of ethclient the Client relies on.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

type Config struct {
	URL         string
	DialTimeout time.Duration
}

// Client wraps a node connection. Errors from a Client dialed by Connect
// never contain the provider URL path or credentials.
type Client struct {
	backend Backend
	rawURL  string

	mu      sync.Mutex
	chainID *big.Int
}

// Connect dials the node and confirms it answers by fetching the chain id.
// Any failure is reported as domain.ErrConnection.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("%w: rpc url is required", domain.ErrConnection)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	backend, err := ethclient.DialContext(dialCtx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnection, redactURL(err.Error(), cfg.URL))
	}
	chainID, err := backend.ChainID(dialCtx)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("%w: chain id: %s", domain.ErrConnection, redactURL(err.Error(), cfg.URL))
	}
	return &Client{backend: backend, rawURL: cfg.URL, chainID: chainID}, nil
}

// redactURL strips the path and credentials of rawURL from msg. Hosted
// provider URLs carry the API key in the path.
func redactURL(msg, rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return strings.ReplaceAll(msg, rawURL, "[redacted]")
	}
	msg = strings.ReplaceAll(msg, rawURL, parsed.Scheme+"://"+parsed.Host)
	if len(strings.Trim(parsed.Path, "/")) > 0 {
		msg = strings.ReplaceAll(msg, parsed.Path, "/[redacted]")
	}
	if parsed.User != nil {
		msg = strings.ReplaceAll(msg, parsed.User.String(), "[redacted]")
	}
	return msg
}

// redactedError carries a node error whose message no longer contains the
// provider URL. The original error stays reachable through Unwrap.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func (c *Client) scrub(err error) error {
	if err == nil || c.rawURL == "" {
		return err
	}
	msg := err.Error()
	redacted := redactURL(msg, c.rawURL)
	if redacted == msg {
		return err
	}
	return &redactedError{msg: redacted, err: err}
}

// NewClient wraps an already dialed backend.
func NewClient(ctx context.Context, backend Backend) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", domain.ErrConnection)
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: chain id: %v", domain.ErrConnection, err)
	}
	return &Client{backend: backend, chainID: chainID}, nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainID != nil {
		return new(big.Int).Set(c.chainID), nil
	}
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, c.scrub(err)
	}
	c.chainID = chainID
	return new(big.Int).Set(chainID), nil
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	number, err := c.backend.BlockNumber(ctx)
	return number, c.scrub(err)
}

// NonceAt returns the account's transaction count at the latest block. It
// always queries the node.
func (c *Client) NonceAt(ctx context.Context, account common.Address) (uint64, error) {
	nonce, err := c.backend.NonceAt(ctx, account, nil)
	return nonce, c.scrub(err)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.backend.SuggestGasPrice(ctx)
	return price, c.scrub(err)
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.scrub(c.backend.SendTransaction(ctx, tx))
}

// TransactionReceipt returns ok=false while the transaction is still pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, bool, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, c.scrub(err)
	}
	return receipt, true, nil
}

func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	return out, c.scrub(err)
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.backend.BlockNumber(ctx)
	return c.scrub(err)
}

func (c *Client) Close() {
	if c.backend != nil {
		c.backend.Close()
	}
}
