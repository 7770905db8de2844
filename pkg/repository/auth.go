package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"p2p_escrow_back/models"
)

type AuthPostgres struct {
	db *sqlx.DB
}

func NewAuthPostgres(db *sqlx.DB) *AuthPostgres {
	return &AuthPostgres{db: db}
}

func (r *AuthPostgres) CreateUser(username string) (int64, error) {
	var id int64
	err := r.db.QueryRow(
		`INSERT INTO users (username) VALUES ($1) RETURNING id`, username,
	).Scan(&id)
	return id, err
}

func (r *AuthPostgres) GetUser(id int64) (models.User, error) {
	var u models.User
	err := r.db.Get(&u, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return u, models.ErrNotFound
	}
	return u, err
}

func (r *AuthPostgres) GetUserByUsername(username string) (models.User, error) {
	var u models.User
	err := r.db.Get(&u, `SELECT * FROM users WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return u, models.ErrNotFound
	}
	return u, err
}

func (r *AuthPostgres) SetFrozen(userID int64, frozen bool) error {
	res, err := r.db.Exec(`UPDATE users SET frozen = $1 WHERE id = $2`, frozen, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AuthPostgres) SaveTOTPSecret(userID int64, secret string) error {
	_, err := r.db.Exec(`UPDATE users SET totp_secret = $1, twofa_enabled = FALSE WHERE id = $2`, secret, userID)
	return err
}

func (r *AuthPostgres) EnableTwoFA(userID int64) error {
	_, err := r.db.Exec(`UPDATE users SET twofa_enabled = TRUE WHERE id = $1`, userID)
	return err
}
