package repository

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"p2p_escrow_back/models"
)

type OrderPostgres struct {
	db *sqlx.DB
}

func NewOrderPostgres(db *sqlx.DB) *OrderPostgres {
	return &OrderPostgres{db: db}
}

// Create создаёт заявку и, если переданы движения (sell-объявления эскроуят
// средства покупателя сразу), проводит их той же транзакцией.
func (r *OrderPostgres) Create(o models.Order, moves []LedgerMove) (int64, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return 0, errors.Wrap(err, "begin create order")
	}
	var id int64
	err = tx.QueryRow(
		`INSERT INTO orders (offer_id, buyer_id, vendor_id, intent, currency, escrow_amount,
		                     fiat_amount, fiat_currency, fee_percent, platform_fee, seller_receives,
		                     status, escrow_held, auto_release_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`,
		o.OfferID, o.BuyerID, o.VendorID, o.Intent, o.Currency, o.EscrowAmount,
		o.FiatAmount, o.FiatCurrency, o.FeePercent, o.PlatformFee, o.SellerReceives,
		o.Status, o.EscrowHeld, o.AutoReleaseAt,
	).Scan(&id)
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "insert order")
	}
	if len(moves) > 0 {
		ref := OrderRef(models.OrderTypeMarketplace, id)
		for i := range moves {
			moves[i].OrderRef = &ref
		}
		if err := applyMoves(tx, moves); err != nil {
			tx.Rollback()
			return 0, err
		}
	}
	return id, tx.Commit()
}

func (r *OrderPostgres) Get(id int64) (models.Order, error) {
	var o models.Order
	err := r.db.Get(&o, `SELECT * FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return o, models.ErrNotFound
	}
	return o, err
}

// Update записывает подготовленное сервисом состояние заявки с оптимистичной
// проверкой версии и проводит движения той же транзакцией. Проигравший
// конкурентный переход получает ErrInvalidStateTransition.
func (r *OrderPostgres) Update(o models.Order, expectedVersion int64, moves []LedgerMove) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "begin update order")
	}
	res, err := tx.Exec(
		`UPDATE orders SET status = $1, escrow_held = $2, cancel_reason = $3, paid_at = $4, confirmed_at = $5,
		        completed_at = $6, auto_release_at = $7, platform_fee = $8, seller_receives = $9,
		        version = version + 1, updated_at = now()
		 WHERE id = $10 AND version = $11`,
		o.Status, o.EscrowHeld, o.CancelReason, o.PaidAt, o.ConfirmedAt,
		o.CompletedAt, o.AutoReleaseAt, o.PlatformFee, o.SellerReceives,
		o.ID, expectedVersion,
	)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "update order")
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

// ListAutoReleasable — оплаченные заявки с истёкшим сроком автоотпуска.
func (r *OrderPostgres) ListAutoReleasable(now time.Time, limit int) ([]models.Order, error) {
	var list []models.Order
	err := r.db.Select(&list,
		`SELECT * FROM orders WHERE status = $1 AND auto_release_at IS NOT NULL AND auto_release_at <= $2
		 ORDER BY auto_release_at LIMIT $3`,
		models.OrderPaid, now, limit)
	return list, err
}
