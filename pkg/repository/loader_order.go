package repository

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"p2p_escrow_back/models"
)

type LoaderOrderPostgres struct {
	db *sqlx.DB
}

func NewLoaderOrderPostgres(db *sqlx.DB) *LoaderOrderPostgres {
	return &LoaderOrderPostgres{db: db}
}

func (r *LoaderOrderPostgres) Create(o models.LoaderOrder) (int64, error) {
	var id int64
	err := r.db.QueryRow(
		`INSERT INTO loader_orders (ad_id, loader_id, receiver_id, currency, deal_amount,
		        loader_fee_reserve, receiver_fee_reserve, loader_fee_percent, receiver_fee_percent,
		        penalty_percent, status, countdown_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		o.AdID, o.LoaderID, o.ReceiverID, o.Currency, o.DealAmount,
		o.LoaderFeeReserve, o.ReceiverFeeReserve, o.LoaderFeePercent, o.ReceiverFeePercent,
		o.PenaltyPercent, o.Status, o.CountdownMinutes,
	).Scan(&id)
	return id, err
}

func (r *LoaderOrderPostgres) Get(id int64) (models.LoaderOrder, error) {
	var o models.LoaderOrder
	err := r.db.Get(&o, `SELECT * FROM loader_orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return o, models.ErrNotFound
	}
	return o, err
}

// Update — тот же протокол, что и у маркетплейса: полная запись состояния под
// проверкой версии плюс движения по кошелькам одной транзакцией.
func (r *LoaderOrderPostgres) Update(o models.LoaderOrder, expectedVersion int64, moves []LedgerMove) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "begin update loader order")
	}
	res, err := tx.Exec(
		`UPDATE loader_orders SET status = $1, liability_type = $2, partial_percent = $3,
		        tolerance_minutes = $4, loader_confirmed = $5, receiver_confirmed = $6,
		        liability_locked_at = $7, countdown_expires_at = $8, countdown_stopped = $9,
		        asset_frozen_at = $10, payment_sent_at = $11, completed_at = $12,
		        loader_frozen = $13, receiver_frozen = $14,
		        loader_fee_reserve = $15, receiver_fee_reserve = $16,
		        penalty_amount = $17, penalty_payer_id = $18, cancel_reason = $19,
		        version = version + 1, updated_at = now()
		 WHERE id = $20 AND version = $21`,
		o.Status, o.LiabilityType, o.PartialPercent,
		o.ToleranceMinutes, o.LoaderConfirmed, o.ReceiverConfirmed,
		o.LiabilityLockedAt, o.CountdownExpiresAt, o.CountdownStopped,
		o.AssetFrozenAt, o.PaymentSentAt, o.CompletedAt,
		o.LoaderFrozen, o.ReceiverFrozen,
		o.LoaderFeeReserve, o.ReceiverFeeReserve,
		o.PenaltyAmount, o.PenaltyPayerID, o.CancelReason,
		o.ID, expectedVersion,
	)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "update loader order")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return models.ErrInvalidStateTransition
	}
	if len(moves) > 0 {
		if err := applyMoves(tx, moves); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListCountdownExpired — заявки, не дождавшиеся реквизитов до дедлайна.
func (r *LoaderOrderPostgres) ListCountdownExpired(now time.Time, limit int) ([]models.LoaderOrder, error) {
	var list []models.LoaderOrder
	err := r.db.Select(&list,
		`SELECT * FROM loader_orders
		 WHERE status = $1 AND countdown_stopped = FALSE
		   AND countdown_expires_at IS NOT NULL AND countdown_expires_at <= $2
		 ORDER BY countdown_expires_at LIMIT $3`,
		models.LoaderAwaitingDetails, now, limit)
	return list, err
}

// ListToleranceExpired — замороженные активы, у которых вышло окно
// толерантности: сделка закрывается без оплаты.
func (r *LoaderOrderPostgres) ListToleranceExpired(now time.Time, limit int) ([]models.LoaderOrder, error) {
	var list []models.LoaderOrder
	err := r.db.Select(&list,
		`SELECT * FROM loader_orders
		 WHERE status = $1 AND liability_type = $2 AND asset_frozen_at IS NOT NULL
		   AND asset_frozen_at + (tolerance_minutes || ' minutes')::interval <= $3
		 ORDER BY asset_frozen_at LIMIT $4`,
		models.LoaderAssetFrozenWaiting, models.LiabilityTolerance, now, limit)
	return list, err
}

func (r *LoaderOrderPostgres) AddFeedback(f models.LoaderFeedback) (int64, error) {
	var id int64
	err := r.db.QueryRow(
		`INSERT INTO loader_feedback (order_id, author_id, positive, comment) VALUES ($1, $2, $3, $4) RETURNING id`,
		f.OrderID, f.AuthorID, f.Positive, f.Comment,
	).Scan(&id)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return 0, models.ErrFeedbackNotAllowed
	}
	return id, err
}

func (r *LoaderOrderPostgres) Feedback(orderID int64) ([]models.LoaderFeedback, error) {
	var list []models.LoaderFeedback
	err := r.db.Select(&list, `SELECT * FROM loader_feedback WHERE order_id = $1 ORDER BY id`, orderID)
	return list, err
}
