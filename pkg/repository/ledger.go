package repository

import (
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"p2p_escrow_back/models"
)

// OrderRef — ссылка на заявку в записи журнала, например "marketplace:17".
func OrderRef(orderType string, id int64) string {
	return fmt.Sprintf("%s:%d", orderType, id)
}

// LedgerMove — одно движение по кошельку внутри атомарной операции.
// Amount всегда положительный, знаки несут дельты.
type LedgerMove struct {
	WalletID       int64
	Type           string
	Amount         decimal.Decimal
	AvailableDelta decimal.Decimal
	EscrowDelta    decimal.Decimal
	Currency       string
	OrderRef       *string
}

func MoveDeposit(walletID int64, amount decimal.Decimal, currency string, ref *string) LedgerMove {
	return LedgerMove{walletID, models.TxDeposit, amount, amount, decimal.Zero, currency, ref}
}

func MoveWithdraw(walletID int64, amount decimal.Decimal, currency string, ref *string) LedgerMove {
	return LedgerMove{walletID, models.TxWithdraw, amount, amount.Neg(), decimal.Zero, currency, ref}
}

// MoveHold: available -> escrow.
func MoveHold(walletID int64, amount decimal.Decimal, currency string, ref *string) LedgerMove {
	return LedgerMove{walletID, models.TxEscrowHold, amount, amount.Neg(), amount, currency, ref}
}

// MoveReleaseOut списывает эскроу у держателя.
func MoveReleaseOut(walletID int64, amount decimal.Decimal, currency string, ref *string) LedgerMove {
	return LedgerMove{walletID, models.TxEscrowRelease, amount, decimal.Zero, amount.Neg(), currency, ref}
}

// MoveReleaseIn зачисляет высвобожденные средства контрагенту.
func MoveReleaseIn(walletID int64, amount decimal.Decimal, currency string, ref *string) LedgerMove {
	return LedgerMove{walletID, models.TxEscrowRelease, amount, amount, decimal.Zero, currency, ref}
}

// MoveFee — комиссия платформе (или штраф).
func MoveFee(walletID int64, amount decimal.Decimal, currency string, ref *string) LedgerMove {
	return LedgerMove{walletID, models.TxFee, amount, amount, decimal.Zero, currency, ref}
}

// MoveRefundEscrow возвращает эскроу держателю: escrow -> available.
func MoveRefundEscrow(walletID int64, amount decimal.Decimal, currency string, ref *string) LedgerMove {
	return LedgerMove{walletID, models.TxRefund, amount, amount, amount.Neg(), currency, ref}
}

// MoveRefundAvailable возвращает ранее списанный доступный остаток
// (отклонённый вывод).
func MoveRefundAvailable(walletID int64, amount decimal.Decimal, currency string, ref *string) LedgerMove {
	return LedgerMove{walletID, models.TxRefund, amount, amount, decimal.Zero, currency, ref}
}

// applyMoves выполняет движения внутри уже открытой транзакции. Кошельки
// блокируются FOR UPDATE в порядке возрастания id, чтобы встречные переводы
// не взаимоблокировались. Отрицательный итог по available/escrow означает
// нарушенное предусловие и откатывает всю транзакцию.
func applyMoves(tx *sqlx.Tx, moves []LedgerMove) error {
	ids := make([]int64, 0, len(moves))
	seen := make(map[int64]bool)
	for _, m := range moves {
		if m.Amount.Sign() <= 0 {
			return models.ErrInvalidAmount
		}
		if !seen[m.WalletID] {
			seen[m.WalletID] = true
			ids = append(ids, m.WalletID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	balances := make(map[int64]models.Wallet, len(ids))
	for _, id := range ids {
		var w models.Wallet
		if err := tx.Get(&w, `SELECT id, user_id, currency, available, escrow, created_at FROM wallets WHERE id = $1 FOR UPDATE`, id); err != nil {
			return errors.Wrapf(err, "lock wallet %d", id)
		}
		balances[id] = w
	}

	for _, m := range moves {
		w := balances[m.WalletID]
		w.Available = w.Available.Add(m.AvailableDelta)
		w.Escrow = w.Escrow.Add(m.EscrowDelta)
		if w.Available.Sign() < 0 {
			return models.ErrInsufficientFunds
		}
		if w.Escrow.Sign() < 0 {
			return models.ErrInsufficientEscrow
		}
		balances[m.WalletID] = w

		if _, err := tx.Exec(
			`UPDATE wallets SET available = available + $1, escrow = escrow + $2 WHERE id = $3`,
			m.AvailableDelta, m.EscrowDelta, m.WalletID,
		); err != nil {
			return errors.Wrapf(err, "update wallet %d", m.WalletID)
		}
		if _, err := tx.Exec(
			`INSERT INTO transactions (wallet_id, type, amount, available_delta, escrow_delta, currency, order_ref)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			m.WalletID, m.Type, m.Amount, m.AvailableDelta, m.EscrowDelta, m.Currency, m.OrderRef,
		); err != nil {
			return errors.Wrap(err, "append transaction")
		}
	}
	return nil
}
