package application

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"
	"sync"
	"testing"

	"ringminter/internal/domain"
	"ringminter/internal/infrastructure/contract"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const testABI = `[
	{"type":"function","name":"mint","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"mint","stateMutability":"payable","inputs":[{"name":"quantity","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setPrice","stateMutability":"nonpayable","inputs":[{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setVaultAddress","stateMutability":"nonpayable","inputs":[{"name":"vault","type":"address"}],"outputs":[]},
	{"type":"function","name":"ownerMint","stateMutability":"nonpayable","inputs":[{"name":"ringTypes","type":"uint256[]"},{"name":"to","type":"address[]"}],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"withdrawAll","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"getRingPrice","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getAvailableRings","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"vault","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

var (
	testContractAddress = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	testChainID         = big.NewInt(11155111)
)

func newTestContract(t *testing.T) *contract.Contract {
	t.Helper()
	parsed, err := contract.ParseABI([]byte(testABI))
	require.NoError(t, err)
	return contract.New(testContractAddress, parsed, nil)
}

func newTestSigner(t *testing.T) (*Signer, domain.Secret) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	secret := domain.NewSecret(hex.EncodeToString(crypto.FromECDSA(key)))
	signer, err := NewSigner(secret, "")
	require.NoError(t, err)
	return signer, secret
}

// eventLog records the order in which pipeline steps happen.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.events, ",")
}

// fakeChain behaves like a node: the nonce advances with every accepted
// transaction and receipts appear after a configurable number of polls.
type fakeChain struct {
	log          *eventLog
	nonce        uint64
	gasPrice     *big.Int
	sendErr      error
	nonceErr     error
	pollsToMine  int
	neverMine    bool
	revert       bool
	sent         []*types.Transaction
	receiptPolls int
}

func newFakeChain(nonce uint64) *fakeChain {
	return &fakeChain{log: &eventLog{}, nonce: nonce, gasPrice: big.NewInt(2_000_000_000)}
}

func (c *fakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(testChainID), nil
}

func (c *fakeChain) NonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.log.add("nonce")
	if c.nonceErr != nil {
		return 0, c.nonceErr
	}
	return c.nonce, nil
}

func (c *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.gasPrice), nil
}

func (c *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.log.add("send")
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, tx)
	c.nonce++
	return nil
}

func (c *fakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, bool, error) {
	c.receiptPolls++
	if c.neverMine || c.receiptPolls <= c.pollsToMine {
		return nil, false, nil
	}
	status := types.ReceiptStatusSuccessful
	if c.revert {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{
		TxHash:      hash,
		Status:      status,
		BlockNumber: big.NewInt(1234),
		GasUsed:     51_000,
	}, true, nil
}

// orderedSigner wraps a signer and records when signing happens.
type orderedSigner struct {
	*Signer
	log *eventLog
}

func (s orderedSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	s.log.add("sign")
	return s.Signer.SignTx(tx, chainID)
}

type memoryRecorder struct {
	mu          sync.Mutex
	submissions []domain.Submission
	err         error
}

func (r *memoryRecorder) RecordSubmission(ctx context.Context, submission domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, submission)
	return r.err
}

func (r *memoryRecorder) statuses() []domain.SubmissionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SubmissionStatus, 0, len(r.submissions))
	for _, s := range r.submissions {
		out = append(out, s.Status)
	}
	return out
}
