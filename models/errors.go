package models

import "errors"

// Ожидаемые доменные ошибки. Хендлеры сопоставляют их с HTTP-статусами через
// errors.Is, поэтому все слои возвращают именно эти значения (обёрнутые или нет).
var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInsufficientEscrow     = errors.New("insufficient escrow")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidAddress         = errors.New("invalid withdrawal address")
	ErrRequires2FA            = errors.New("valid 2fa code required")
	ErrRequires2FASetup       = errors.New("2fa is not configured for this account")
	ErrLimitExceeded          = errors.New("treasury limit exceeded")
	ErrLiabilityNotSelected   = errors.New("liability type is not selected")
	ErrLiabilityAlreadyLocked = errors.New("liability is already locked")
	ErrCountdownExpired       = errors.New("order countdown has expired")
	ErrBadRequestID           = errors.New("request id must be a valid uuid")
	ErrDisputeAlreadyOpen     = errors.New("dispute is already open for this order")
	ErrDisputeWindowClosed    = errors.New("dispute window has closed")
	ErrMasterWalletLocked     = errors.New("master wallet is locked")
	ErrWithdrawalsDisabled    = errors.New("withdrawals are disabled")
	ErrDepositsDisabled       = errors.New("deposits are disabled")
	ErrAccountFrozen          = errors.New("account is frozen")
	ErrNotOrderParty          = errors.New("user is not a party of this order")
	ErrNotAllowed             = errors.New("operation is not permitted for this user")
	ErrFeedbackNotAllowed     = errors.New("feedback is not permitted for this user")
	ErrNotFound               = errors.New("not found")
)
