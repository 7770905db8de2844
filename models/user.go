package models

import "time"

type User struct {
	ID                   int64     `db:"id" json:"id"`
	Username             string    `db:"username" json:"username"`
	Frozen               bool      `db:"frozen" json:"frozen"`
	TwoFAEnabled         bool      `db:"twofa_enabled" json:"twofa_enabled"`
	TOTPSecret           string    `db:"totp_secret" json:"-"`
	CanResolveDisputes   bool      `db:"can_resolve_disputes" json:"can_resolve_disputes"`
	CanApproveWithdrawal bool      `db:"can_approve_withdrawals" json:"can_approve_withdrawals"`
	CanManageTreasury    bool      `db:"can_manage_treasury" json:"can_manage_treasury"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

type LoginInput struct {
	Username string `json:"username" binding:"required"`
}
