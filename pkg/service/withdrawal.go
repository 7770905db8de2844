package service

import (
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/repository"
)

type WithdrawalService struct {
	withdrawals repository.Withdrawals
	wallets     repository.Wallets
	users       repository.Authorization
	treasury    repository.Treasury
	now         func() time.Time
}

func NewWithdrawalService(withdrawals repository.Withdrawals, wallets repository.Wallets,
	users repository.Authorization, treasury repository.Treasury) *WithdrawalService {
	return &WithdrawalService{
		withdrawals: withdrawals,
		wallets:     wallets,
		users:       users,
		treasury:    treasury,
		now:         time.Now,
	}
}

// Request резервирует сумму сразу при создании заявки: между запросом и
// решением персонала эти средства потратить нельзя.
func (s *WithdrawalService) Request(userID int64, input models.WithdrawInput) (models.WithdrawalRequest, error) {
	controls, err := s.treasury.Get()
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if !controls.WithdrawalsEnabled || controls.EmergencyMode {
		return models.WithdrawalRequest{}, models.ErrWithdrawalsDisabled
	}
	user, err := s.users.GetUser(userID)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if user.Frozen {
		return models.WithdrawalRequest{}, models.ErrAccountFrozen
	}
	amount, err := ParseAmount(input.Amount)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if amount.LessThan(controls.MinWithdrawalAmount) {
		return models.WithdrawalRequest{}, models.ErrLimitExceeded
	}
	if err := validateAddress(input.Address, input.Network); err != nil {
		return models.WithdrawalRequest{}, err
	}

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	userToday, err := s.withdrawals.SumSince(userID, startOfDay)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if controls.UserDailyLimit.Sign() > 0 && userToday.Add(amount).GreaterThan(controls.UserDailyLimit) {
		return models.WithdrawalRequest{}, models.ErrLimitExceeded
	}
	platformToday, err := s.withdrawals.SumSince(0, startOfDay)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if controls.PlatformDailyLimit.Sign() > 0 && platformToday.Add(amount).GreaterThan(controls.PlatformDailyLimit) {
		return models.WithdrawalRequest{}, models.ErrLimitExceeded
	}

	// Свежий аккаунт выдерживает паузу перед первым выводом, крупные суммы —
	// дополнительную.
	prior, err := s.withdrawals.CountForUser(userID)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if prior == 0 && controls.FirstWithdrawalDelayMin > 0 {
		earliest := user.CreatedAt.Add(time.Duration(controls.FirstWithdrawalDelayMin) * time.Minute)
		if now.Before(earliest) {
			return models.WithdrawalRequest{}, models.ErrLimitExceeded
		}
	}
	if controls.LargeWithdrawalThreshold.Sign() > 0 && amount.GreaterThanOrEqual(controls.LargeWithdrawalThreshold) &&
		controls.LargeWithdrawalDelayMin > 0 {
		earliest := user.CreatedAt.Add(time.Duration(controls.LargeWithdrawalDelayMin) * time.Minute)
		if now.Before(earliest) {
			return models.WithdrawalRequest{}, models.ErrLimitExceeded
		}
	}

	wallet, err := s.wallets.Get(userID, input.Currency)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	id, err := s.withdrawals.Create(models.WithdrawalRequest{
		UserID:   userID,
		WalletID: wallet.ID,
		Amount:   amount,
		Currency: input.Currency,
		Address:  input.Address,
		Network:  input.Network,
	})
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	logrus.WithFields(logrus.Fields{
		"user":    userID,
		"amount":  amount.String(),
		"network": input.Network,
	}).Info("Создана заявка на вывод")
	return s.withdrawals.Get(id)
}

func (s *WithdrawalService) Get(actorID, id int64) (models.WithdrawalRequest, error) {
	req, err := s.withdrawals.Get(id)
	if err != nil {
		return req, err
	}
	if req.UserID != actorID {
		actor, err := s.users.GetUser(actorID)
		if err != nil || !actor.CanApproveWithdrawal {
			return models.WithdrawalRequest{}, models.ErrNotAllowed
		}
	}
	return req, nil
}

func (s *WithdrawalService) ListPending(staffID int64) ([]models.WithdrawalRequest, error) {
	if err := s.requireApprover(staffID); err != nil {
		return nil, err
	}
	return s.withdrawals.ListByStatus(models.WithdrawalPending)
}

// Approve выпускает заявку к исполнению. Без разблокированного мастер-кошелька
// одобрение невозможно, заявка остаётся в очереди.
func (s *WithdrawalService) Approve(staffID, id int64) (models.WithdrawalRequest, error) {
	if err := s.requireApprover(staffID); err != nil {
		return models.WithdrawalRequest{}, err
	}
	controls, err := s.treasury.Get()
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if !controls.MasterWalletUnlocked {
		return models.WithdrawalRequest{}, models.ErrMasterWalletLocked
	}
	if err := s.withdrawals.Approve(id, staffID); err != nil {
		return models.WithdrawalRequest{}, err
	}
	req, err := s.withdrawals.Get(id)
	if err != nil {
		return req, err
	}
	logrus.WithFields(logrus.Fields{
		"request": id,
		"admin":   staffID,
		"amount":  req.Amount.String(),
	}).Info("Вывод одобрен")
	return req, nil
}

// Reject возвращает зарезервированную сумму на доступный баланс.
func (s *WithdrawalService) Reject(staffID, id int64, reason string) (models.WithdrawalRequest, error) {
	if err := s.requireApprover(staffID); err != nil {
		return models.WithdrawalRequest{}, err
	}
	if err := s.withdrawals.Reject(id, staffID, reason); err != nil {
		return models.WithdrawalRequest{}, err
	}
	return s.withdrawals.Get(id)
}

func (s *WithdrawalService) requireApprover(staffID int64) error {
	staff, err := s.users.GetUser(staffID)
	if err != nil {
		return err
	}
	if !staff.CanApproveWithdrawal {
		return models.ErrNotAllowed
	}
	return nil
}

// validateAddress проверяет только формат. Существование адреса в сети ядро
// не выясняет.
func validateAddress(address, network string) error {
	switch network {
	case "trc20", "tron":
		raw, err := base58.Decode(address)
		if err != nil || len(raw) != 25 || raw[0] != 0x41 {
			return models.ErrInvalidAddress
		}
	default:
		if len(address) < 16 {
			return models.ErrInvalidAddress
		}
	}
	return nil
}
