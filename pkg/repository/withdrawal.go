package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"p2p_escrow_back/models"
)

type WithdrawalPostgres struct {
	db *sqlx.DB
}

func NewWithdrawalPostgres(db *sqlx.DB) *WithdrawalPostgres {
	return &WithdrawalPostgres{db: db}
}

// Create резервирует сумму (списывает available) и создаёт pending-заявку
// одной транзакцией: одна и та же сумма не может висеть в двух заявках.
func (r *WithdrawalPostgres) Create(req models.WithdrawalRequest) (int64, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return 0, errors.Wrap(err, "begin create withdrawal")
	}
	var id int64
	err = tx.QueryRow(
		`INSERT INTO withdrawal_requests (user_id, wallet_id, amount, currency, address, network, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		req.UserID, req.WalletID, req.Amount, req.Currency, req.Address, req.Network, models.WithdrawalPending,
	).Scan(&id)
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "insert withdrawal request")
	}
	ref := fmt.Sprintf("withdrawal:%d", id)
	if err := applyMoves(tx, []LedgerMove{MoveWithdraw(req.WalletID, req.Amount, req.Currency, &ref)}); err != nil {
		tx.Rollback()
		return 0, err
	}
	return id, tx.Commit()
}

func (r *WithdrawalPostgres) Get(id int64) (models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	err := r.db.Get(&req, `SELECT * FROM withdrawal_requests WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return req, models.ErrNotFound
	}
	return req, err
}

func (r *WithdrawalPostgres) ListByStatus(status string) ([]models.WithdrawalRequest, error) {
	var list []models.WithdrawalRequest
	err := r.db.Select(&list, `SELECT * FROM withdrawal_requests WHERE status = $1 ORDER BY id`, status)
	return list, err
}

// Approve: только из pending. Сумма уже зарезервирована при создании заявки,
// дополнительных движений нет.
func (r *WithdrawalPostgres) Approve(id, reviewerID int64) error {
	res, err := r.db.Exec(
		`UPDATE withdrawal_requests SET status = $1, reviewer_id = $2, reviewed_at = now()
		 WHERE id = $3 AND status = $4`,
		models.WithdrawalApproved, reviewerID, id, models.WithdrawalPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrInvalidStateTransition
	}
	return nil
}

// Reject возвращает зарезервированную сумму на available той же транзакцией.
func (r *WithdrawalPostgres) Reject(id, reviewerID int64, reason string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "begin reject withdrawal")
	}
	var req models.WithdrawalRequest
	if err := tx.Get(&req, `SELECT * FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, id); err != nil {
		tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		return errors.Wrap(err, "lock withdrawal request")
	}
	if req.Status != models.WithdrawalPending {
		tx.Rollback()
		return models.ErrInvalidStateTransition
	}
	if _, err := tx.Exec(
		`UPDATE withdrawal_requests SET status = $1, reviewer_id = $2, reject_reason = $3, reviewed_at = now() WHERE id = $4`,
		models.WithdrawalRejected, reviewerID, reason, id,
	); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "reject withdrawal")
	}
	ref := fmt.Sprintf("withdrawal:%d", id)
	if err := applyMoves(tx, []LedgerMove{MoveRefundAvailable(req.WalletID, req.Amount, req.Currency, &ref)}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SumSince считает зарезервированное и одобренное с момента since.
// userID = 0 — по всей платформе. Лимиты считаются от журнала заявок,
// накопительные счётчики не ведутся и не расходятся с ним.
func (r *WithdrawalPostgres) SumSince(userID int64, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM withdrawal_requests
	          WHERE status IN ($1, $2) AND created_at >= $3`
	args := []interface{}{models.WithdrawalPending, models.WithdrawalApproved, since}
	if userID != 0 {
		query += ` AND user_id = $4`
		args = append(args, userID)
	}
	err := r.db.Get(&sum, query, args...)
	return sum, err
}

func (r *WithdrawalPostgres) CountForUser(userID int64) (int, error) {
	var n int
	err := r.db.Get(&n, `SELECT COUNT(*) FROM withdrawal_requests WHERE user_id = $1`, userID)
	return n, err
}
