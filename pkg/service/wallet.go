package service

import (
	"github.com/shopspring/decimal"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/repository"
)

type WalletService struct {
	wallets  repository.Wallets
	users    repository.Authorization
	treasury repository.Treasury
}

func NewWalletService(wallets repository.Wallets, users repository.Authorization, treasury repository.Treasury) *WalletService {
	return &WalletService{wallets: wallets, users: users, treasury: treasury}
}

func (s *WalletService) Wallets(userID int64) ([]models.Wallet, error) {
	return s.wallets.ForUser(userID)
}

func (s *WalletService) Transactions(userID int64, currency string) ([]models.Transaction, error) {
	w, err := s.wallets.Get(userID, currency)
	if err != nil {
		return nil, err
	}
	return s.wallets.Transactions(w.ID)
}

// Deposit зачисляет подтверждённый депозит. Выводится наружу как шов для
// он-чейн слушателя, который вне ядра.
func (s *WalletService) Deposit(userID int64, input models.DepositInput) (models.Wallet, error) {
	controls, err := s.treasury.Get()
	if err != nil {
		return models.Wallet{}, err
	}
	if !controls.DepositsEnabled || controls.EmergencyMode {
		return models.Wallet{}, models.ErrDepositsDisabled
	}
	user, err := s.users.GetUser(userID)
	if err != nil {
		return models.Wallet{}, err
	}
	if user.Frozen {
		return models.Wallet{}, models.ErrAccountFrozen
	}
	amount, err := ParseAmount(input.Amount)
	if err != nil {
		return models.Wallet{}, err
	}
	w, err := s.wallets.Ensure(userID, input.Currency)
	if err != nil {
		return models.Wallet{}, err
	}
	if err := s.wallets.Apply([]repository.LedgerMove{
		repository.MoveDeposit(w.ID, amount, input.Currency, nil),
	}); err != nil {
		return models.Wallet{}, err
	}
	return s.wallets.GetByID(w.ID)
}

// ParseAmount разбирает денежную строку: строго положительная, не больше
// восьми знаков после запятой.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, models.ErrInvalidAmount
	}
	if amount.Sign() <= 0 || amount.Exponent() < -8 {
		return decimal.Zero, models.ErrInvalidAmount
	}
	return amount, nil
}
