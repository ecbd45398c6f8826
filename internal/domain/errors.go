package domain

import "errors"

var (
	ErrConnection          = errors.New("chain connection failed")
	ErrTransactionRejected = errors.New("transaction rejected")
	ErrReceiptWait         = errors.New("receipt wait failed")
	ErrReceiptTimeout      = errors.New("timed out waiting for receipt")
	ErrSignerMismatch      = errors.New("private key does not match owner address")
)
