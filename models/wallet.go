package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlatformUserID — зарезервированный владелец платформенных кошельков
// (комиссии, штрафы). Обычные пользователи получают id > 1.
const PlatformUserID int64 = 1

type Wallet struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	Currency  string          `db:"currency" json:"currency"`
	Available decimal.Decimal `db:"available" json:"available"`
	Escrow    decimal.Decimal `db:"escrow" json:"escrow"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

const (
	TxDeposit       = "deposit"
	TxWithdraw      = "withdraw"
	TxEscrowHold    = "escrow_hold"
	TxEscrowRelease = "escrow_release"
	TxFee           = "fee"
	TxRefund        = "refund"
)

// Transaction — неизменяемая запись журнала. Помимо типа и суммы хранит
// подписанные дельты по обоим остаткам: сумма дельт всех записей кошелька
// обязана сходиться с его текущими available/escrow.
type Transaction struct {
	ID             int64           `db:"id" json:"id"`
	WalletID       int64           `db:"wallet_id" json:"wallet_id"`
	Type           string          `db:"type" json:"type"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	AvailableDelta decimal.Decimal `db:"available_delta" json:"available_delta"`
	EscrowDelta    decimal.Decimal `db:"escrow_delta" json:"escrow_delta"`
	Currency       string          `db:"currency" json:"currency"`
	OrderRef       *string         `db:"order_ref" json:"order_ref,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

type DepositInput struct {
	Currency string `json:"currency" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
}
