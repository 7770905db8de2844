package repository

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"p2p_escrow_back/models"
)

// ResolutionApply описывает, что решение делает с заявкой и кошельками.
// Репозиторий применяет всё одной транзакцией поверх идемпотентной записи
// в dispute_resolutions.
type ResolutionApply struct {
	OrderType            string
	OrderID              int64
	OrderStatus          string
	ExpectedOrderVersion int64
	CompletedAt          time.Time
	PenaltyAmount        decimal.Decimal
	PenaltyPayerID       *int64
	Moves                []LedgerMove
}

type DisputePostgres struct {
	db *sqlx.DB
}

func NewDisputePostgres(db *sqlx.DB) *DisputePostgres {
	return &DisputePostgres{db: db}
}

// Open открывает спор и той же транзакцией переводит заявку в disputed.
// Частичный уникальный индекс гарантирует один активный спор на заявку.
func (r *DisputePostgres) Open(d models.Dispute, expectedOrderVersion int64) (int64, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return 0, errors.Wrap(err, "begin open dispute")
	}
	var id int64
	err = tx.QueryRow(
		`INSERT INTO disputes (order_type, order_id, opener_id, reason, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		d.OrderType, d.OrderID, d.OpenerID, d.Reason, models.DisputeOpen,
	).Scan(&id)
	if err != nil {
		tx.Rollback()
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return 0, models.ErrDisputeAlreadyOpen
		}
		return 0, errors.Wrap(err, "insert dispute")
	}

	table := "orders"
	if d.OrderType == models.OrderTypeLoader {
		table = "loader_orders"
	}
	res, err := tx.Exec(
		`UPDATE `+table+` SET status = $1, version = version + 1, updated_at = now() WHERE id = $2 AND version = $3`,
		statusDisputed(d.OrderType), d.OrderID, expectedOrderVersion,
	)
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "mark order disputed")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return 0, models.ErrInvalidStateTransition
	}
	return id, tx.Commit()
}

func statusDisputed(orderType string) string {
	if orderType == models.OrderTypeLoader {
		return models.LoaderDisputed
	}
	return models.OrderDisputed
}

func (r *DisputePostgres) Get(id int64) (models.Dispute, error) {
	var d models.Dispute
	err := r.db.Get(&d, `SELECT * FROM disputes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return d, models.ErrNotFound
	}
	return d, err
}

func (r *DisputePostgres) GetByOrder(orderType string, orderID int64) (models.Dispute, error) {
	var d models.Dispute
	err := r.db.Get(&d,
		`SELECT * FROM disputes WHERE order_type = $1 AND order_id = $2 AND status <> $3`,
		orderType, orderID, models.DisputeResolved)
	if errors.Is(err, sql.ErrNoRows) {
		return d, models.ErrNotFound
	}
	return d, err
}

func (r *DisputePostgres) List(status string) ([]models.Dispute, error) {
	var list []models.Dispute
	if status == "" {
		err := r.db.Select(&list, `SELECT * FROM disputes ORDER BY id DESC`)
		return list, err
	}
	err := r.db.Select(&list, `SELECT * FROM disputes WHERE status = $1 ORDER BY id DESC`, status)
	return list, err
}

func (r *DisputePostgres) MarkInReview(id int64) error {
	res, err := r.db.Exec(
		`UPDATE disputes SET status = $1 WHERE id = $2 AND status = $3`,
		models.DisputeInReview, id, models.DisputeOpen)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrInvalidStateTransition
	}
	return nil
}

func (r *DisputePostgres) AddMessage(m models.DisputeMessage) (int64, error) {
	var id int64
	err := r.db.QueryRow(
		`INSERT INTO dispute_messages (dispute_id, author_id, body) VALUES ($1, $2, $3) RETURNING id`,
		m.DisputeID, m.AuthorID, m.Body,
	).Scan(&id)
	return id, err
}

func (r *DisputePostgres) Messages(disputeID int64) ([]models.DisputeMessage, error) {
	var list []models.DisputeMessage
	err := r.db.Select(&list, `SELECT * FROM dispute_messages WHERE dispute_id = $1 ORDER BY id`, disputeID)
	return list, err
}

// Resolve применяет решение ровно один раз. Повтор с тем же request_id
// возвращает (false, nil) и не трогает ни остатки, ни статусы.
func (r *DisputePostgres) Resolve(res models.DisputeResolution, apply ResolutionApply) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, errors.Wrap(err, "begin resolve dispute")
	}
	ins, err := tx.Exec(
		`INSERT INTO dispute_resolutions (request_id, dispute_id, resolved_by, outcome, release_amount, refund_amount, rationale)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (request_id) DO NOTHING`,
		res.RequestID, res.DisputeID, res.ResolvedBy, res.Outcome, res.ReleaseAmount, res.RefundAmount, res.Rationale,
	)
	if err != nil {
		tx.Rollback()
		return false, errors.Wrap(err, "insert resolution")
	}
	if n, _ := ins.RowsAffected(); n == 0 {
		tx.Rollback()
		return false, nil
	}

	upd, err := tx.Exec(
		`UPDATE disputes SET status = $1, resolution = $2, resolved_by = $3, resolved_at = $4
		 WHERE id = $5 AND status <> $1`,
		models.DisputeResolved, res.Rationale, res.ResolvedBy, apply.CompletedAt, res.DisputeID,
	)
	if err != nil {
		tx.Rollback()
		return false, errors.Wrap(err, "close dispute")
	}
	if n, _ := upd.RowsAffected(); n == 0 {
		tx.Rollback()
		return false, models.ErrInvalidStateTransition
	}

	var ord sql.Result
	if apply.OrderType == models.OrderTypeLoader {
		ord, err = tx.Exec(
			`UPDATE loader_orders SET status = $1, completed_at = $2, penalty_amount = $3, penalty_payer_id = $4,
			        loader_frozen = 0, receiver_frozen = 0, loader_fee_reserve = 0, receiver_fee_reserve = 0,
			        version = version + 1, updated_at = now()
			 WHERE id = $5 AND version = $6`,
			apply.OrderStatus, apply.CompletedAt, apply.PenaltyAmount, apply.PenaltyPayerID,
			apply.OrderID, apply.ExpectedOrderVersion)
	} else {
		ord, err = tx.Exec(
			`UPDATE orders SET status = $1, completed_at = $2, escrow_held = FALSE, version = version + 1, updated_at = now()
			 WHERE id = $3 AND version = $4`,
			apply.OrderStatus, apply.CompletedAt, apply.OrderID, apply.ExpectedOrderVersion)
	}
	if err != nil {
		tx.Rollback()
		return false, errors.Wrap(err, "finalize order")
	}
	if n, _ := ord.RowsAffected(); n == 0 {
		tx.Rollback()
		return false, models.ErrInvalidStateTransition
	}

	if len(apply.Moves) > 0 {
		if err := applyMoves(tx, apply.Moves); err != nil {
			tx.Rollback()
			return false, err
		}
	}
	return true, tx.Commit()
}
