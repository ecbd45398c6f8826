package domain

import "time"

// SubmissionStatus tracks how far a submission got.
type SubmissionStatus string

const (
	StatusBroadcast SubmissionStatus = "broadcast"
	StatusConfirmed SubmissionStatus = "confirmed"
	StatusReverted  SubmissionStatus = "reverted"
	StatusFailed    SubmissionStatus = "failed"
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusBroadcast, StatusConfirmed, StatusReverted, StatusFailed:
		return true
	default:
		return false
	}
}

// Submission is the journal record of one transaction sent by the submitter.
// TxHash is empty for submissions that failed before a hash existed.
type Submission struct {
	ID          string
	ChainID     uint64
	TxHash      string
	Function    string
	Category    Category
	From        string
	To          string
	Nonce       uint64
	Value       string
	Gas         uint64
	GasPrice    string
	Status      SubmissionStatus
	Stage       string
	Error       string
	BlockNumber uint64
	GasUsed     uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SubmissionFilter narrows journal queries.
type SubmissionFilter struct {
	ChainID  *uint64
	Function string
	Status   SubmissionStatus
	From     string
	TxHash   string
	Limit    int
}

// NormalizedLimit clamps Limit to the journal's page size.
func (f SubmissionFilter) NormalizedLimit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return 100
	}
	return f.Limit
}
