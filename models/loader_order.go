package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LoaderCreated              = "created"
	LoaderAwaitingLiability    = "awaiting_liability_confirmation"
	LoaderAwaitingDetails      = "awaiting_payment_details"
	LoaderDetailsSent          = "payment_details_sent"
	LoaderPaymentSent          = "payment_sent"
	LoaderAssetFrozenWaiting   = "asset_frozen_waiting"
	LoaderCompleted            = "completed"
	LoaderClosedNoPayment      = "closed_no_payment"
	LoaderCancelledAuto        = "cancelled_auto"
	LoaderCancelledByLoader    = "cancelled_loader"
	LoaderCancelledByReceiver  = "cancelled_receiver"
	LoaderDisputed             = "disputed"
	LoaderResolvedLoaderWins   = "resolved_loader_wins"
	LoaderResolvedReceiverWins = "resolved_receiver_wins"
	LoaderResolvedMutual       = "resolved_mutual"
)

// Типы ответственности получателя на случай заморозки залитого актива.
const (
	LiabilityFullPayment = "full_payment"
	LiabilityPartial10   = "partial_10"
	LiabilityPartial25   = "partial_25"
	LiabilityPartial50   = "partial_50"
	LiabilityTolerance   = "tolerance"
)

// Допустимые окна толерантности в минутах: 24h/48h/72h/неделя/месяц.
var ToleranceWindows = map[string]int{
	"24h":    24 * 60,
	"48h":    48 * 60,
	"72h":    72 * 60,
	"1week":  7 * 24 * 60,
	"1month": 30 * 24 * 60,
}

// Допустимые длительности обратного отсчёта в минутах.
var CountdownChoices = map[int]bool{15: true, 30: true, 60: true, 120: true}

type LoaderOrder struct {
	ID                 int64            `db:"id" json:"id"`
	AdID               int64            `db:"ad_id" json:"ad_id"`
	LoaderID           int64            `db:"loader_id" json:"loader_id"`
	ReceiverID         int64            `db:"receiver_id" json:"receiver_id"`
	Currency           string           `db:"currency" json:"currency"`
	DealAmount         decimal.Decimal  `db:"deal_amount" json:"deal_amount"`
	LoaderFrozen       decimal.Decimal  `db:"loader_frozen" json:"loader_frozen"`
	ReceiverFrozen     decimal.Decimal  `db:"receiver_frozen" json:"receiver_frozen"`
	LoaderFeeReserve   decimal.Decimal  `db:"loader_fee_reserve" json:"loader_fee_reserve"`
	ReceiverFeeReserve decimal.Decimal  `db:"receiver_fee_reserve" json:"receiver_fee_reserve"`
	LoaderFeePercent   decimal.Decimal  `db:"loader_fee_percent" json:"loader_fee_percent"`
	ReceiverFeePercent decimal.Decimal  `db:"receiver_fee_percent" json:"receiver_fee_percent"`
	PenaltyPercent     decimal.Decimal  `db:"penalty_percent" json:"penalty_percent"`
	Status             string           `db:"status" json:"status"`
	LiabilityType      *string          `db:"liability_type" json:"liability_type,omitempty"`
	PartialPercent     decimal.Decimal  `db:"partial_percent" json:"partial_percent"`
	ToleranceMinutes   int              `db:"tolerance_minutes" json:"tolerance_minutes"`
	LoaderConfirmed    bool             `db:"loader_confirmed" json:"loader_confirmed"`
	ReceiverConfirmed  bool             `db:"receiver_confirmed" json:"receiver_confirmed"`
	LiabilityLockedAt  *time.Time       `db:"liability_locked_at" json:"liability_locked_at,omitempty"`
	CountdownMinutes   int              `db:"countdown_minutes" json:"countdown_minutes"`
	CountdownExpiresAt *time.Time       `db:"countdown_expires_at" json:"countdown_expires_at,omitempty"`
	CountdownStopped   bool             `db:"countdown_stopped" json:"countdown_stopped"`
	AssetFrozenAt      *time.Time       `db:"asset_frozen_at" json:"asset_frozen_at,omitempty"`
	PaymentSentAt      *time.Time       `db:"payment_sent_at" json:"payment_sent_at,omitempty"`
	CompletedAt        *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	PenaltyAmount      decimal.Decimal  `db:"penalty_amount" json:"penalty_amount"`
	PenaltyPayerID     *int64           `db:"penalty_payer_id" json:"penalty_payer_id,omitempty"`
	CancelReason       *string          `db:"cancel_reason" json:"cancel_reason,omitempty"`
	Version            int64            `db:"version" json:"-"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

func (o *LoaderOrder) IsTerminal() bool {
	switch o.Status {
	case LoaderCompleted, LoaderClosedNoPayment, LoaderCancelledAuto,
		LoaderCancelledByLoader, LoaderCancelledByReceiver,
		LoaderResolvedLoaderWins, LoaderResolvedReceiverWins, LoaderResolvedMutual:
		return true
	}
	return false
}

func (o *LoaderOrder) IsParty(userID int64) bool {
	return userID == o.LoaderID || userID == o.ReceiverID
}

// LiabilityLocked: тип зафиксирован только когда подтвердили обе стороны.
func (o *LoaderOrder) LiabilityLocked() bool {
	return o.LiabilityType != nil && o.LoaderConfirmed && o.ReceiverConfirmed
}

type LoaderFeedback struct {
	ID        int64     `db:"id" json:"id"`
	OrderID   int64     `db:"order_id" json:"order_id"`
	AuthorID  int64     `db:"author_id" json:"author_id"`
	Positive  bool      `db:"positive" json:"positive"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CreateLoaderOrderInput struct {
	AdID             int64  `json:"ad_id" binding:"required"`
	LoaderID         int64  `json:"loader_id" binding:"required"`
	Currency         string `json:"currency" binding:"required"`
	DealAmount       string `json:"deal_amount" binding:"required"`
	CountdownMinutes int    `json:"countdown_minutes" binding:"required"`
}

type SelectLiabilityInput struct {
	LiabilityType string `json:"liability_type" binding:"required"`
	// Окно толерантности ("24h", "48h", "72h", "1week", "1month"),
	// обязательно только для liability_type=tolerance.
	ToleranceWindow string `json:"tolerance_window"`
}

type CompleteLoaderInput struct {
	TOTPCode string `json:"totp_code"`
}

type LoaderFeedbackInput struct {
	Positive bool   `json:"positive"`
	Comment  string `json:"comment"`
}
