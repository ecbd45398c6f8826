package domain

// Receipt is the confirmation the chain returned for a submitted transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	BlockHash   string
	Status      uint64
	GasUsed     uint64
}

// Succeeded reports whether the transaction executed without reverting.
func (r Receipt) Succeeded() bool {
	return r.Status == 1
}
