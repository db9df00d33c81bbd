package domain

import (
	"errors"

	"mpsol_restaking/pkg/quant"
	"mpsol_restaking/pkg/safe"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents an RPC or network failure that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "getAccountInfo")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// OpError is returned by every rejected ledger operation.
// Subject is the LST mint, ticket id or principal the operation targeted.
type OpError struct {
	Op      string
	Subject string
	Err     error
}

func (e *OpError) Error() string {
	if e.Subject == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " [" + e.Subject + "]: " + e.Err.Error()
}

// IsRetriable is always false: a rejected operation fails the same way until state changes.
func (e *OpError) IsRetriable() bool {
	return false
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError wraps err with the operation name and subject.
func NewOpError(op, subject string, err error) *OpError {
	return &OpError{Op: op, Subject: subject, Err: err}
}

var (
	ErrVaultAlreadyExists             = errors.New("vault already exists")
	ErrVaultAlreadyWhitelisted        = errors.New("vault already whitelisted")
	ErrMaxWhitelistedVaultsReached    = errors.New("max whitelisted vaults reached")
	ErrVaultNotFound                  = errors.New("vault not found")
	ErrDepositsInThisVaultAreDisabled = errors.New("deposits in this vault are disabled")
	ErrDepositCapExceeded             = errors.New("deposit cap exceeded")
	ErrInsufficientVaultBalance       = errors.New("insufficient vault balance")
	ErrInsufficientShareBalance       = errors.New("insufficient share balance")
	ErrFeeOutOfRange                  = errors.New("fee out of range")

	// ErrDivisionByZeroPrice is returned when the vault price was never refreshed.
	ErrDivisionByZeroPrice = quant.ErrDivisionByZeroPrice

	// ErrPoolBackingDepleted is returned for a deposit into a pool whose shares back nothing.
	ErrPoolBackingDepleted = quant.ErrZeroBacking

	// ErrArithmeticOverflow covers any checked u64 or mul_div overflow.
	ErrArithmeticOverflow = safe.ErrOverflow

	ErrOracleDivisionByZero   = errors.New("oracle division by zero")
	ErrOracleStateUnavailable = errors.New("oracle state unavailable")
	ErrPriceStale             = errors.New("lst price is stale")

	ErrTicketNotFound          = errors.New("ticket not found")
	ErrTicketNotYetDue         = errors.New("ticket not yet due")
	ErrClaimExceedsTicketValue = errors.New("claim exceeds ticket value")
	ErrCantLeaveDustInTicket   = errors.New("partial claim would leave dust in ticket")
	ErrNotBeneficiary          = errors.New("caller is not the ticket beneficiary")

	ErrUnauthorized       = errors.New("unauthorized")
	ErrAmountTooSmall     = errors.New("amount too small")
	ErrNotInitialized     = errors.New("main vault not initialized")
	ErrAlreadyInitialized = errors.New("main vault already initialized")

	ErrStrategyNotFound        = errors.New("strategy not found")
	ErrStrategyAlreadyAttached = errors.New("strategy already attached")
)

// ArithmeticError folds the arithmetic errors of pkg/safe and pkg/quant into
// the ledger's error set. Other errors pass through unchanged.
func ArithmeticError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, safe.ErrOverflow), errors.Is(err, safe.ErrUnderflow), errors.Is(err, quant.ErrOverflow):
		return ErrArithmeticOverflow
	case errors.Is(err, quant.ErrDivisionByZero):
		return ErrArithmeticOverflow
	default:
		return err
	}
}
