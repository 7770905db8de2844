package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	IntentSellAd = "sell_ad"
	IntentBuyAd  = "buy_ad"
)

const (
	OrderCreated         = "created"
	OrderAwaitingDeposit = "awaiting_deposit"
	OrderEscrowed        = "escrowed"
	OrderPaid            = "paid"
	OrderConfirmed       = "confirmed"
	OrderCompleted       = "completed"
	OrderCancelled       = "cancelled"
	OrderDisputed        = "disputed"
	OrderResolvedRelease = "resolved_release"
	OrderResolvedRefund  = "resolved_refund"
)

type Order struct {
	ID             int64           `db:"id" json:"id"`
	OfferID        int64           `db:"offer_id" json:"offer_id"`
	BuyerID        int64           `db:"buyer_id" json:"buyer_id"`
	VendorID       int64           `db:"vendor_id" json:"vendor_id"`
	Intent         string          `db:"intent" json:"intent"`
	Currency       string          `db:"currency" json:"currency"`
	EscrowAmount   decimal.Decimal `db:"escrow_amount" json:"escrow_amount"`
	FiatAmount     decimal.Decimal `db:"fiat_amount" json:"fiat_amount"`
	FiatCurrency   string          `db:"fiat_currency" json:"fiat_currency"`
	FeePercent     decimal.Decimal `db:"fee_percent" json:"fee_percent"`
	PlatformFee    decimal.Decimal `db:"platform_fee" json:"platform_fee"`
	SellerReceives decimal.Decimal `db:"seller_receives" json:"seller_receives"`
	Status         string          `db:"status" json:"status"`
	EscrowHeld     bool            `db:"escrow_held" json:"escrow_held"`
	CancelReason   *string         `db:"cancel_reason" json:"cancel_reason,omitempty"`
	PaidAt         *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	ConfirmedAt    *time.Time      `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	AutoReleaseAt  *time.Time      `db:"auto_release_at" json:"auto_release_at,omitempty"`
	Version        int64           `db:"version" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// IsTerminal: из терминального статуса заявка больше не переходит никуда.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderCompleted, OrderCancelled, OrderResolvedRelease, OrderResolvedRefund:
		return true
	}
	return false
}

func (o *Order) IsParty(userID int64) bool {
	return userID == o.BuyerID || userID == o.VendorID
}

type CreateOrderInput struct {
	OfferID      int64  `json:"offer_id" binding:"required"`
	VendorID     int64  `json:"vendor_id" binding:"required"`
	Intent       string `json:"intent" binding:"required"`
	Currency     string `json:"currency" binding:"required"`
	FiatAmount   string `json:"fiat_amount" binding:"required"`
	FiatCurrency string `json:"fiat_currency" binding:"required"`
}

type CancelOrderInput struct {
	Reason string `json:"reason"`
}

type ConfirmOrderInput struct {
	TOTPCode string `json:"totp_code"`
}

type OpenDisputeInput struct {
	Reason string `json:"reason" binding:"required"`
}
