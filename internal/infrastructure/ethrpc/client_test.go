package ethrpc

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"ringminter/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	chainID      *big.Int
	chainIDErr   error
	chainIDCalls int
	nonceBlock   *big.Int
	nonceCalls   int
	receipt      *types.Receipt
	receiptErr   error
	lastCall     ethereum.CallMsg
	closed       bool
}

func (b *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	b.chainIDCalls++
	return b.chainID, b.chainIDErr
}

func (b *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) { return 99, nil }

func (b *fakeBackend) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	b.nonceCalls++
	b.nonceBlock = blockNumber
	return uint64(b.nonceCalls), nil
}

func (b *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(3), nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error { return nil }

func (b *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return b.receipt, b.receiptErr
}

func (b *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.lastCall = msg
	return []byte{1}, nil
}

func (b *fakeBackend) Close() { b.closed = true }

func TestNewClientCachesChainID(t *testing.T) {
	backend := &fakeBackend{chainID: big.NewInt(11155111)}
	client, err := NewClient(context.Background(), backend)
	require.NoError(t, err)

	id, err := client.ChainID(context.Background())
	require.NoError(t, err)
	id.SetInt64(1)

	again, err := client.ChainID(context.Background())
	require.NoError(t, err)
	require.Equal(t, "11155111", again.String())
	require.Equal(t, 1, backend.chainIDCalls)
}

func TestNewClientFailureIsConnectionError(t *testing.T) {
	_, err := NewClient(context.Background(), &fakeBackend{chainIDErr: errors.New("401 unauthorized")})
	require.ErrorIs(t, err, domain.ErrConnection)

	_, err = NewClient(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrConnection)
}

func TestNonceAlwaysQueriesLatest(t *testing.T) {
	backend := &fakeBackend{chainID: big.NewInt(1)}
	client, err := NewClient(context.Background(), backend)
	require.NoError(t, err)

	first, err := client.NonceAt(context.Background(), common.HexToAddress("0x01"))
	require.NoError(t, err)
	second, err := client.NonceAt(context.Background(), common.HexToAddress("0x01"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), first)
	require.Equal(t, uint64(2), second)
	require.Nil(t, backend.nonceBlock)
}

func TestTransactionReceiptPending(t *testing.T) {
	backend := &fakeBackend{chainID: big.NewInt(1), receiptErr: ethereum.NotFound}
	client, err := NewClient(context.Background(), backend)
	require.NoError(t, err)

	receipt, ok, err := client.TransactionReceipt(context.Background(), common.Hash{})
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, receipt)

	backend.receiptErr = errors.New("boom")
	_, _, err = client.TransactionReceipt(context.Background(), common.Hash{})
	require.ErrorContains(t, err, "boom")

	backend.receiptErr = nil
	backend.receipt = &types.Receipt{Status: types.ReceiptStatusSuccessful}
	_, ok, err = client.TransactionReceipt(context.Background(), common.Hash{})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCallContractTargetsAddress(t *testing.T) {
	backend := &fakeBackend{chainID: big.NewInt(1)}
	client, err := NewClient(context.Background(), backend)
	require.NoError(t, err)

	to := common.HexToAddress("0x00000000000000000000000000000000000000c0")
	_, err = client.CallContract(context.Background(), to, []byte{0xaa})
	require.NoError(t, err)
	require.Equal(t, to, *backend.lastCall.To)
	require.Equal(t, []byte{0xaa}, backend.lastCall.Data)

	client.Close()
	require.True(t, backend.closed)
}

func TestConnectRequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	require.ErrorIs(t, err, domain.ErrConnection)
}

func TestRedactURL(t *testing.T) {
	raw := "https://sepolia.infura.io/v3/secretkey"
	msg := redactURL(`Post "https://sepolia.infura.io/v3/secretkey": dial tcp: timeout`, raw)
	require.NotContains(t, msg, "secretkey")
	require.Contains(t, msg, "https://sepolia.infura.io")
}

// newChainIDNode answers eth_chainId for any request and nothing else.
func newChainIDNode(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0xaa36a7",
		})
	}))
}

func TestClientErrorsNeverCarryAPIKey(t *testing.T) {
	const apiKey = "SUPERSECRETAPIKEY"
	node := newChainIDNode(t)
	client, err := Connect(context.Background(), Config{URL: node.URL + "/v3/" + apiKey, DialTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer client.Close()

	chainID, err := client.ChainID(context.Background())
	require.NoError(t, err)
	require.Equal(t, "11155111", chainID.String())

	node.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = client.NonceAt(ctx, common.HexToAddress("0x01"))
	require.Error(t, err)
	require.NotContains(t, err.Error(), apiKey)
	var urlErr *url.Error
	require.ErrorAs(t, err, &urlErr)

	_, err = client.SuggestGasPrice(ctx)
	require.Error(t, err)
	require.NotContains(t, err.Error(), apiKey)

	_, err = client.CallContract(ctx, common.HexToAddress("0xc0"), []byte{0x01})
	require.Error(t, err)
	require.NotContains(t, err.Error(), apiKey)

	_, _, err = client.TransactionReceipt(ctx, common.Hash{})
	require.Error(t, err)
	require.NotContains(t, err.Error(), apiKey)

	err = client.Ping(ctx)
	require.Error(t, err)
	require.NotContains(t, err.Error(), apiKey)
}

func TestScrubKeepsCause(t *testing.T) {
	client := &Client{rawURL: "https://sepolia.infura.io/v3/secretkey"}
	cause := errors.New(`Post "https://sepolia.infura.io/v3/secretkey": EOF`)
	err := client.scrub(cause)
	require.ErrorIs(t, err, cause)
	require.Equal(t, `Post "https://sepolia.infura.io": EOF`, err.Error())

	plain := errors.New("nonce too low")
	require.Same(t, plain, client.scrub(plain))
	require.NoError(t, client.scrub(nil))
}
