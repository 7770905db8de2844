package repository

import "github.com/jmoiron/sqlx"

// Схема создаётся на старте, без отдельного инструмента миграций.
// NUMERIC(18,8) для криптосумм, NUMERIC(18,2) для фиата.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    frozen BOOLEAN NOT NULL DEFAULT FALSE,
    twofa_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    totp_secret TEXT NOT NULL DEFAULT '',
    can_resolve_disputes BOOLEAN NOT NULL DEFAULT FALSE,
    can_approve_withdrawals BOOLEAN NOT NULL DEFAULT FALSE,
    can_manage_treasury BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS wallets (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    currency TEXT NOT NULL,
    available NUMERIC(18,8) NOT NULL DEFAULT 0 CHECK (available >= 0),
    escrow NUMERIC(18,8) NOT NULL DEFAULT 0 CHECK (escrow >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (user_id, currency)
);

CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    wallet_id BIGINT NOT NULL REFERENCES wallets(id),
    type TEXT NOT NULL,
    amount NUMERIC(18,8) NOT NULL CHECK (amount > 0),
    available_delta NUMERIC(18,8) NOT NULL,
    escrow_delta NUMERIC(18,8) NOT NULL,
    currency TEXT NOT NULL,
    order_ref TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transactions_wallet ON transactions(wallet_id);

CREATE TABLE IF NOT EXISTS orders (
    id BIGSERIAL PRIMARY KEY,
    offer_id BIGINT NOT NULL,
    buyer_id BIGINT NOT NULL REFERENCES users(id),
    vendor_id BIGINT NOT NULL REFERENCES users(id),
    intent TEXT NOT NULL,
    currency TEXT NOT NULL,
    escrow_amount NUMERIC(18,8) NOT NULL,
    fiat_amount NUMERIC(18,2) NOT NULL,
    fiat_currency TEXT NOT NULL,
    fee_percent NUMERIC(18,8) NOT NULL,
    platform_fee NUMERIC(18,8) NOT NULL DEFAULT 0,
    seller_receives NUMERIC(18,8) NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    escrow_held BOOLEAN NOT NULL DEFAULT FALSE,
    cancel_reason TEXT,
    paid_at TIMESTAMPTZ,
    confirmed_at TIMESTAMPTZ,
    completed_at TIMESTAMPTZ,
    auto_release_at TIMESTAMPTZ,
    version BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

CREATE TABLE IF NOT EXISTS loader_orders (
    id BIGSERIAL PRIMARY KEY,
    ad_id BIGINT NOT NULL,
    loader_id BIGINT NOT NULL REFERENCES users(id),
    receiver_id BIGINT NOT NULL REFERENCES users(id),
    currency TEXT NOT NULL,
    deal_amount NUMERIC(18,8) NOT NULL,
    loader_frozen NUMERIC(18,8) NOT NULL DEFAULT 0,
    receiver_frozen NUMERIC(18,8) NOT NULL DEFAULT 0,
    loader_fee_reserve NUMERIC(18,8) NOT NULL DEFAULT 0,
    receiver_fee_reserve NUMERIC(18,8) NOT NULL DEFAULT 0,
    loader_fee_percent NUMERIC(18,8) NOT NULL,
    receiver_fee_percent NUMERIC(18,8) NOT NULL,
    penalty_percent NUMERIC(18,8) NOT NULL,
    status TEXT NOT NULL,
    liability_type TEXT,
    partial_percent NUMERIC(18,8) NOT NULL DEFAULT 0,
    tolerance_minutes INT NOT NULL DEFAULT 0,
    loader_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    receiver_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    liability_locked_at TIMESTAMPTZ,
    countdown_minutes INT NOT NULL,
    countdown_expires_at TIMESTAMPTZ,
    countdown_stopped BOOLEAN NOT NULL DEFAULT FALSE,
    asset_frozen_at TIMESTAMPTZ,
    payment_sent_at TIMESTAMPTZ,
    completed_at TIMESTAMPTZ,
    penalty_amount NUMERIC(18,8) NOT NULL DEFAULT 0,
    penalty_payer_id BIGINT,
    cancel_reason TEXT,
    version BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_loader_orders_status ON loader_orders(status);

CREATE TABLE IF NOT EXISTS loader_feedback (
    id BIGSERIAL PRIMARY KEY,
    order_id BIGINT NOT NULL REFERENCES loader_orders(id),
    author_id BIGINT NOT NULL REFERENCES users(id),
    positive BOOLEAN NOT NULL,
    comment TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (order_id, author_id)
);

CREATE TABLE IF NOT EXISTS disputes (
    id BIGSERIAL PRIMARY KEY,
    order_type TEXT NOT NULL,
    order_id BIGINT NOT NULL,
    opener_id BIGINT NOT NULL REFERENCES users(id),
    reason TEXT NOT NULL,
    status TEXT NOT NULL,
    resolution TEXT,
    resolved_by BIGINT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    resolved_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_disputes_one_active
    ON disputes(order_type, order_id) WHERE status <> 'resolved';

CREATE TABLE IF NOT EXISTS dispute_messages (
    id BIGSERIAL PRIMARY KEY,
    dispute_id BIGINT NOT NULL REFERENCES disputes(id),
    author_id BIGINT NOT NULL REFERENCES users(id),
    body TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dispute_resolutions (
    request_id UUID PRIMARY KEY,
    dispute_id BIGINT NOT NULL REFERENCES disputes(id),
    resolved_by BIGINT NOT NULL,
    outcome TEXT NOT NULL,
    release_amount NUMERIC(18,8) NOT NULL DEFAULT 0,
    refund_amount NUMERIC(18,8) NOT NULL DEFAULT 0,
    rationale TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS withdrawal_requests (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    wallet_id BIGINT NOT NULL REFERENCES wallets(id),
    amount NUMERIC(18,8) NOT NULL,
    currency TEXT NOT NULL,
    address TEXT NOT NULL,
    network TEXT NOT NULL,
    status TEXT NOT NULL,
    reject_reason TEXT,
    reviewer_id BIGINT,
    reviewed_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawal_requests(status);

CREATE TABLE IF NOT EXISTS treasury_controls (
    id BIGINT PRIMARY KEY,
    deposits_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    withdrawals_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    sweeps_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    emergency_mode BOOLEAN NOT NULL DEFAULT FALSE,
    min_withdrawal_amount NUMERIC(18,8) NOT NULL DEFAULT 10,
    user_daily_limit NUMERIC(18,8) NOT NULL DEFAULT 10000,
    platform_daily_limit NUMERIC(18,8) NOT NULL DEFAULT 100000,
    large_withdrawal_threshold NUMERIC(18,8) NOT NULL DEFAULT 5000,
    first_withdrawal_delay_min INT NOT NULL DEFAULT 1440,
    large_withdrawal_delay_min INT NOT NULL DEFAULT 720,
    withdrawal_fee_percent NUMERIC(18,8) NOT NULL DEFAULT 0,
    withdrawal_fee_fixed NUMERIC(18,8) NOT NULL DEFAULT 0,
    deposit_confirmations INT NOT NULL DEFAULT 2,
    master_wallet_unlocked BOOLEAN NOT NULL DEFAULT FALSE,
    master_unlocked_by BIGINT,
    total_deposited NUMERIC(18,8) NOT NULL DEFAULT 0,
    total_swept NUMERIC(18,8) NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS blockchain_admin_actions (
    id BIGSERIAL PRIMARY KEY,
    admin_id BIGINT NOT NULL,
    action TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func ApplySchema(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	// Страховочная строка казначейства и служебный пользователь платформы.
	if _, err := db.Exec(`INSERT INTO users (id, username) VALUES (1, 'platform') ON CONFLICT (id) DO NOTHING`); err != nil {
		return err
	}
	_, err := db.Exec(`INSERT INTO treasury_controls (id) VALUES (1) ON CONFLICT (id) DO NOTHING`)
	return err
}
