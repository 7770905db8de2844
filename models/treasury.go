package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TreasuryControls — единственная строка с глобальными переключателями и
// лимитами казначейства. Читается и меняется только через сервис, а не как
// глобальное состояние процесса.
type TreasuryControls struct {
	ID                       int64           `db:"id" json:"id"`
	DepositsEnabled          bool            `db:"deposits_enabled" json:"deposits_enabled"`
	WithdrawalsEnabled       bool            `db:"withdrawals_enabled" json:"withdrawals_enabled"`
	SweepsEnabled            bool            `db:"sweeps_enabled" json:"sweeps_enabled"`
	EmergencyMode            bool            `db:"emergency_mode" json:"emergency_mode"`
	MinWithdrawalAmount      decimal.Decimal `db:"min_withdrawal_amount" json:"min_withdrawal_amount"`
	UserDailyLimit           decimal.Decimal `db:"user_daily_limit" json:"user_daily_limit"`
	PlatformDailyLimit       decimal.Decimal `db:"platform_daily_limit" json:"platform_daily_limit"`
	LargeWithdrawalThreshold decimal.Decimal `db:"large_withdrawal_threshold" json:"large_withdrawal_threshold"`
	FirstWithdrawalDelayMin  int             `db:"first_withdrawal_delay_min" json:"first_withdrawal_delay_min"`
	LargeWithdrawalDelayMin  int             `db:"large_withdrawal_delay_min" json:"large_withdrawal_delay_min"`
	WithdrawalFeePercent     decimal.Decimal `db:"withdrawal_fee_percent" json:"withdrawal_fee_percent"`
	WithdrawalFeeFixed       decimal.Decimal `db:"withdrawal_fee_fixed" json:"withdrawal_fee_fixed"`
	DepositConfirmations     int             `db:"deposit_confirmations" json:"deposit_confirmations"`
	MasterWalletUnlocked     bool            `db:"master_wallet_unlocked" json:"master_wallet_unlocked"`
	MasterUnlockedBy         *int64          `db:"master_unlocked_by" json:"master_unlocked_by,omitempty"`
	TotalDeposited           decimal.Decimal `db:"total_deposited" json:"total_deposited"`
	TotalSwept               decimal.Decimal `db:"total_swept" json:"total_swept"`
	UpdatedAt                time.Time       `db:"updated_at" json:"updated_at"`
}

// TreasuryPatch: nil-поля не трогаются. Суммы передаются строками, как и
// везде во внешнем контуре.
type TreasuryPatch struct {
	DepositsEnabled          *bool   `json:"deposits_enabled"`
	WithdrawalsEnabled       *bool   `json:"withdrawals_enabled"`
	SweepsEnabled            *bool   `json:"sweeps_enabled"`
	EmergencyMode            *bool   `json:"emergency_mode"`
	MinWithdrawalAmount      *string `json:"min_withdrawal_amount"`
	UserDailyLimit           *string `json:"user_daily_limit"`
	PlatformDailyLimit       *string `json:"platform_daily_limit"`
	LargeWithdrawalThreshold *string `json:"large_withdrawal_threshold"`
	FirstWithdrawalDelayMin  *int    `json:"first_withdrawal_delay_min"`
	LargeWithdrawalDelayMin  *int    `json:"large_withdrawal_delay_min"`
	WithdrawalFeePercent     *string `json:"withdrawal_fee_percent"`
	WithdrawalFeeFixed       *string `json:"withdrawal_fee_fixed"`
	DepositConfirmations     *int    `json:"deposit_confirmations"`
}

// AdminAction — журнал привилегированных действий с мастер-кошельком.
type AdminAction struct {
	ID        int64     `db:"id" json:"id"`
	AdminID   int64     `db:"admin_id" json:"admin_id"`
	Action    string    `db:"action" json:"action"`
	Details   string    `db:"details" json:"details"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
