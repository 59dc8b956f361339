package vault

import "errors"

// Sentinel errors for vault operations. These are precondition failures:
// every one aborts the whole call with no partial state mutation.
var (
	ErrVaultAlreadyExists              = errors.New("vault already exists")
	ErrInvalidScheduleRange            = errors.New("invalid schedule range")
	ErrVaultNotFound                   = errors.New("vault not found")
	ErrVaultNotInFundingProcess        = errors.New("vault not in funding process")
	ErrVaultCannotBeFinished           = errors.New("vault cannot be finished")
	ErrNoContributionRecorded          = errors.New("no contribution recorded")
	ErrInsufficientContributionInVault = errors.New("insufficient contribution in vault")
	ErrDivisionByZero                  = errors.New("division by zero")
)
