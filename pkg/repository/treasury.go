package repository

import (
	"github.com/jmoiron/sqlx"

	"p2p_escrow_back/models"
)

type TreasuryPostgres struct {
	db *sqlx.DB
}

func NewTreasuryPostgres(db *sqlx.DB) *TreasuryPostgres {
	return &TreasuryPostgres{db: db}
}

func (r *TreasuryPostgres) Get() (models.TreasuryControls, error) {
	var c models.TreasuryControls
	err := r.db.Get(&c, `SELECT * FROM treasury_controls WHERE id = 1`)
	return c, err
}

func (r *TreasuryPostgres) Save(c models.TreasuryControls) error {
	_, err := r.db.Exec(
		`UPDATE treasury_controls SET deposits_enabled = $1, withdrawals_enabled = $2, sweeps_enabled = $3,
		        emergency_mode = $4, min_withdrawal_amount = $5, user_daily_limit = $6,
		        platform_daily_limit = $7, large_withdrawal_threshold = $8,
		        first_withdrawal_delay_min = $9, large_withdrawal_delay_min = $10,
		        withdrawal_fee_percent = $11, withdrawal_fee_fixed = $12, deposit_confirmations = $13,
		        updated_at = now()
		 WHERE id = 1`,
		c.DepositsEnabled, c.WithdrawalsEnabled, c.SweepsEnabled,
		c.EmergencyMode, c.MinWithdrawalAmount, c.UserDailyLimit,
		c.PlatformDailyLimit, c.LargeWithdrawalThreshold,
		c.FirstWithdrawalDelayMin, c.LargeWithdrawalDelayMin,
		c.WithdrawalFeePercent, c.WithdrawalFeeFixed, c.DepositConfirmations,
	)
	return err
}

// SetMasterUnlock переключает мастер-кошелёк. Кто разблокировал — фиксируется.
func (r *TreasuryPostgres) SetMasterUnlock(unlocked bool, byUserID int64) error {
	var by interface{}
	if unlocked {
		by = byUserID
	}
	_, err := r.db.Exec(
		`UPDATE treasury_controls SET master_wallet_unlocked = $1, master_unlocked_by = $2, updated_at = now() WHERE id = 1`,
		unlocked, by)
	return err
}

func (r *TreasuryPostgres) LogAdminAction(a models.AdminAction) error {
	_, err := r.db.Exec(
		`INSERT INTO blockchain_admin_actions (admin_id, action, details) VALUES ($1, $2, $3)`,
		a.AdminID, a.Action, a.Details)
	return err
}

func (r *TreasuryPostgres) AdminActions(limit int) ([]models.AdminAction, error) {
	var list []models.AdminAction
	err := r.db.Select(&list, `SELECT * FROM blockchain_admin_actions ORDER BY id DESC LIMIT $1`, limit)
	return list, err
}
