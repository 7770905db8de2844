package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
)

type WithdrawalRequest struct {
	ID           int64           `db:"id" json:"id"`
	UserID       int64           `db:"user_id" json:"user_id"`
	WalletID     int64           `db:"wallet_id" json:"wallet_id"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Currency     string          `db:"currency" json:"currency"`
	Address      string          `db:"address" json:"address"`
	Network      string          `db:"network" json:"network"`
	Status       string          `db:"status" json:"status"`
	RejectReason *string         `db:"reject_reason" json:"reject_reason,omitempty"`
	ReviewerID   *int64          `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ReviewedAt   *time.Time      `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

type WithdrawInput struct {
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required"`
	Address  string `json:"address" binding:"required"`
	Network  string `json:"network" binding:"required"`
}

type RejectWithdrawalInput struct {
	Reason string `json:"reason" binding:"required"`
}
