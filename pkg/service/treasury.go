package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/repository"
)

type TreasuryService struct {
	treasury repository.Treasury
	users    repository.Authorization
	twofa    *TwoFAService
}

func NewTreasuryService(treasury repository.Treasury, users repository.Authorization, twofa *TwoFAService) *TreasuryService {
	return &TreasuryService{treasury: treasury, users: users, twofa: twofa}
}

func (s *TreasuryService) Get(staffID int64) (models.TreasuryControls, error) {
	if _, err := s.requireManager(staffID); err != nil {
		return models.TreasuryControls{}, err
	}
	return s.treasury.Get()
}

// Patch меняет только переданные поля и пишет запись в журнал действий.
func (s *TreasuryService) Patch(staffID int64, patch models.TreasuryPatch) (models.TreasuryControls, error) {
	if _, err := s.requireManager(staffID); err != nil {
		return models.TreasuryControls{}, err
	}
	controls, err := s.treasury.Get()
	if err != nil {
		return models.TreasuryControls{}, err
	}

	if patch.DepositsEnabled != nil {
		controls.DepositsEnabled = *patch.DepositsEnabled
	}
	if patch.WithdrawalsEnabled != nil {
		controls.WithdrawalsEnabled = *patch.WithdrawalsEnabled
	}
	if patch.SweepsEnabled != nil {
		controls.SweepsEnabled = *patch.SweepsEnabled
	}
	if patch.EmergencyMode != nil {
		controls.EmergencyMode = *patch.EmergencyMode
	}
	if patch.FirstWithdrawalDelayMin != nil {
		controls.FirstWithdrawalDelayMin = *patch.FirstWithdrawalDelayMin
	}
	if patch.LargeWithdrawalDelayMin != nil {
		controls.LargeWithdrawalDelayMin = *patch.LargeWithdrawalDelayMin
	}
	if patch.DepositConfirmations != nil {
		controls.DepositConfirmations = *patch.DepositConfirmations
	}
	if patch.MinWithdrawalAmount != nil {
		if controls.MinWithdrawalAmount, err = ParseAmount(*patch.MinWithdrawalAmount); err != nil {
			return models.TreasuryControls{}, err
		}
	}
	if patch.UserDailyLimit != nil {
		if controls.UserDailyLimit, err = ParseAmount(*patch.UserDailyLimit); err != nil {
			return models.TreasuryControls{}, err
		}
	}
	if patch.PlatformDailyLimit != nil {
		if controls.PlatformDailyLimit, err = ParseAmount(*patch.PlatformDailyLimit); err != nil {
			return models.TreasuryControls{}, err
		}
	}
	if patch.LargeWithdrawalThreshold != nil {
		if controls.LargeWithdrawalThreshold, err = ParseAmount(*patch.LargeWithdrawalThreshold); err != nil {
			return models.TreasuryControls{}, err
		}
	}
	if patch.WithdrawalFeePercent != nil {
		if controls.WithdrawalFeePercent, err = ParseAmount(*patch.WithdrawalFeePercent); err != nil {
			return models.TreasuryControls{}, err
		}
	}
	if patch.WithdrawalFeeFixed != nil {
		if controls.WithdrawalFeeFixed, err = ParseAmount(*patch.WithdrawalFeeFixed); err != nil {
			return models.TreasuryControls{}, err
		}
	}

	if err := s.treasury.Save(controls); err != nil {
		return models.TreasuryControls{}, err
	}
	if err := s.treasury.LogAdminAction(models.AdminAction{
		AdminID: staffID,
		Action:  "treasury_settings_update",
		Details: fmt.Sprintf("deposits=%v withdrawals=%v emergency=%v",
			controls.DepositsEnabled, controls.WithdrawalsEnabled, controls.EmergencyMode),
	}); err != nil {
		return models.TreasuryControls{}, err
	}
	return s.treasury.Get()
}

// Unlock снимает блокировку мастер-кошелька. Требует валидного TOTP-кода:
// одобрение выводов начинается с этого рубильника.
func (s *TreasuryService) Unlock(staffID int64, totpCode string) (models.TreasuryControls, error) {
	staff, err := s.requireManager(staffID)
	if err != nil {
		return models.TreasuryControls{}, err
	}
	if err := s.twofa.Require(staff, totpCode); err != nil {
		return models.TreasuryControls{}, err
	}
	if err := s.treasury.SetMasterUnlock(true, staffID); err != nil {
		return models.TreasuryControls{}, err
	}
	if err := s.treasury.LogAdminAction(models.AdminAction{
		AdminID: staffID,
		Action:  "master_wallet_unlock",
	}); err != nil {
		return models.TreasuryControls{}, err
	}
	logrus.WithField("admin", staffID).Warn("Мастер-кошелёк разблокирован")
	return s.treasury.Get()
}

func (s *TreasuryService) Lock(staffID int64) (models.TreasuryControls, error) {
	if _, err := s.requireManager(staffID); err != nil {
		return models.TreasuryControls{}, err
	}
	if err := s.treasury.SetMasterUnlock(false, 0); err != nil {
		return models.TreasuryControls{}, err
	}
	if err := s.treasury.LogAdminAction(models.AdminAction{
		AdminID: staffID,
		Action:  "master_wallet_lock",
	}); err != nil {
		return models.TreasuryControls{}, err
	}
	logrus.WithField("admin", staffID).Info("Мастер-кошелёк заблокирован")
	return s.treasury.Get()
}

func (s *TreasuryService) AdminActions(staffID int64, limit int) ([]models.AdminAction, error) {
	if _, err := s.requireManager(staffID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.treasury.AdminActions(limit)
}

func (s *TreasuryService) requireManager(staffID int64) (models.User, error) {
	staff, err := s.users.GetUser(staffID)
	if err != nil {
		return models.User{}, err
	}
	if !staff.CanManageTreasury {
		return models.User{}, models.ErrNotAllowed
	}
	return staff, nil
}
