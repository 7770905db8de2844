package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"p2p_escrow_back/models"
)

type WalletPostgres struct {
	db *sqlx.DB
}

func NewWalletPostgres(db *sqlx.DB) *WalletPostgres {
	return &WalletPostgres{db: db}
}

func (r *WalletPostgres) Create(userID int64, currency string) (int64, error) {
	var id int64
	err := r.db.QueryRow(
		`INSERT INTO wallets (user_id, currency) VALUES ($1, $2) RETURNING id`,
		userID, currency,
	).Scan(&id)
	return id, err
}

// Ensure возвращает кошелёк пользователя в валюте, создавая его при
// отсутствии. Используется и для платформенных кошельков комиссий.
func (r *WalletPostgres) Ensure(userID int64, currency string) (models.Wallet, error) {
	var w models.Wallet
	err := r.db.Get(&w, `SELECT * FROM wallets WHERE user_id = $1 AND currency = $2`, userID, currency)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return w, err
	}
	if _, err := r.db.Exec(
		`INSERT INTO wallets (user_id, currency) VALUES ($1, $2) ON CONFLICT (user_id, currency) DO NOTHING`,
		userID, currency,
	); err != nil {
		return w, err
	}
	err = r.db.Get(&w, `SELECT * FROM wallets WHERE user_id = $1 AND currency = $2`, userID, currency)
	return w, err
}

func (r *WalletPostgres) Get(userID int64, currency string) (models.Wallet, error) {
	var w models.Wallet
	err := r.db.Get(&w, `SELECT * FROM wallets WHERE user_id = $1 AND currency = $2`, userID, currency)
	if errors.Is(err, sql.ErrNoRows) {
		return w, models.ErrNotFound
	}
	return w, err
}

func (r *WalletPostgres) GetByID(id int64) (models.Wallet, error) {
	var w models.Wallet
	err := r.db.Get(&w, `SELECT * FROM wallets WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return w, models.ErrNotFound
	}
	return w, err
}

func (r *WalletPostgres) ForUser(userID int64) ([]models.Wallet, error) {
	var ws []models.Wallet
	err := r.db.Select(&ws, `SELECT * FROM wallets WHERE user_id = $1 ORDER BY currency`, userID)
	return ws, err
}

// Apply выполняет набор движений одной транзакцией: либо меняются остатки и
// появляются записи журнала, либо ничего.
func (r *WalletPostgres) Apply(moves []LedgerMove) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "begin ledger tx")
	}
	if err := applyMoves(tx, moves); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *WalletPostgres) Transactions(walletID int64) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.Select(&txs,
		`SELECT * FROM transactions WHERE wallet_id = $1 ORDER BY id`, walletID)
	return txs, err
}
