package application

import "fmt"

// Stage names the submission pipeline step an error came from.
type Stage string

const (
	StageNonce     Stage = "nonce"
	StageBuild     Stage = "build"
	StageSign      Stage = "sign"
	StageBroadcast Stage = "broadcast"
	StageReceipt   Stage = "receipt"
)

// SubmitError wraps a pipeline failure with the stage and contract function.
type SubmitError struct {
	Stage    Stage
	Function string
	TxHash   string
	Err      error
}

func (e *SubmitError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("[%s] %s (%s): %v", e.Stage, e.Function, e.TxHash, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Function, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

func wrapStage(stage Stage, function, txHash string, err error) *SubmitError {
	return &SubmitError{Stage: stage, Function: function, TxHash: txHash, Err: err}
}
