package ledger

import "errors"

// Sentinel errors for money movement. Like the vault errors these are
// synchronous precondition failures that abort the whole call.
var (
	ErrInvalidMoneyTransfer              = errors.New("invalid money transfer")
	ErrInsufficientSpendingWalletBalance = errors.New("insufficient spending wallet balance")
	ErrReentrantCall                     = errors.New("reentrant call")
)
