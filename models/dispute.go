package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderTypeMarketplace = "marketplace"
	OrderTypeLoader      = "loader"
)

const (
	DisputeOpen     = "open"
	DisputeInReview = "in_review"
	DisputeResolved = "resolved"
)

// Итоги решения спора. Для маркетплейса: release/refund, для залив-зоны:
// победитель или обоюдное решение.
const (
	ResolutionRelease      = "resolved_release"
	ResolutionRefund       = "resolved_refund"
	ResolutionLoaderWins   = "loader"
	ResolutionReceiverWins = "receiver"
	ResolutionMutual       = "mutual"
)

type Dispute struct {
	ID         int64      `db:"id" json:"id"`
	OrderType  string     `db:"order_type" json:"order_type"`
	OrderID    int64      `db:"order_id" json:"order_id"`
	OpenerID   int64      `db:"opener_id" json:"opener_id"`
	Reason     string     `db:"reason" json:"reason"`
	Status     string     `db:"status" json:"status"`
	Resolution *string    `db:"resolution" json:"resolution,omitempty"`
	ResolvedBy *int64     `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

type DisputeMessage struct {
	ID        int64     `db:"id" json:"id"`
	DisputeID int64     `db:"dispute_id" json:"dispute_id"`
	AuthorID  int64     `db:"author_id" json:"author_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DisputeResolution — аудит-запись решения. request_id уникален, повторная
// отправка того же решения не применяет движение средств второй раз.
type DisputeResolution struct {
	RequestID     uuid.UUID       `db:"request_id" json:"request_id"`
	DisputeID     int64           `db:"dispute_id" json:"dispute_id"`
	ResolvedBy    int64           `db:"resolved_by" json:"resolved_by"`
	Outcome       string          `db:"outcome" json:"outcome"`
	ReleaseAmount decimal.Decimal `db:"release_amount" json:"release_amount"`
	RefundAmount  decimal.Decimal `db:"refund_amount" json:"refund_amount"`
	Rationale     string          `db:"rationale" json:"rationale"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

type ResolveDisputeInput struct {
	RequestID     string `json:"request_id" binding:"required"`
	Outcome       string `json:"outcome" binding:"required"`
	Resolution    string `json:"resolution" binding:"required"`
	PartialAmount string `json:"partial_amount"`
	TOTPCode      string `json:"totp_code"`
}

type DisputeMessageInput struct {
	Body string `json:"body" binding:"required"`
}

/// DisputeDetail — агрегат для админки: спор, переписка и балансы сторон.
type DisputeDetail struct {
	Dispute  Dispute          `json:"dispute"`
	Messages []DisputeMessage `json:"messages"`
	Wallets  []Wallet         `json:"wallets"`
}
