package service

import (
	"github.com/pquerna/otp/totp"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/repository"
)

// TwoFAService проверяет TOTP-коды перед необратимыми операциями.
// Ошибки никогда не применяются частично: неверный код — и баланс не тронут.
type TwoFAService struct {
	repos  repository.Authorization
	issuer string
}

func NewTwoFAService(repos repository.Authorization, issuer string) *TwoFAService {
	return &TwoFAService{repos: repos, issuer: issuer}
}

// Setup генерирует секрет и otpauth-ссылку. 2FA включается только после
// подтверждения первым валидным кодом.
func (s *TwoFAService) Setup(userID int64) (secret, url string, err error) {
	user, err := s.repos.GetUser(userID)
	if err != nil {
		return "", "", err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: user.Username,
		SecretSize:  32,
	})
	if err != nil {
		return "", "", err
	}
	if err := s.repos.SaveTOTPSecret(userID, key.Secret()); err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

func (s *TwoFAService) VerifySetup(userID int64, code string) error {
	user, err := s.repos.GetUser(userID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == "" {
		return models.ErrRequires2FASetup
	}
	if !totp.Validate(code, user.TOTPSecret) {
		return models.ErrRequires2FA
	}
	return s.repos.EnableTwoFA(userID)
}

// Require возвращает Requires2FASetup, если у пользователя нет 2FA, и
// Requires2FA при пустом или неверном коде.
func (s *TwoFAService) Require(user models.User, code string) error {
	if !user.TwoFAEnabled || user.TOTPSecret == "" {
		return models.ErrRequires2FASetup
	}
	if code == "" || !totp.Validate(code, user.TOTPSecret) {
		return models.ErrRequires2FA
	}
	return nil
}

// RequireIfEnabled — мягкий вариант: пользователи без 2FA проходят без кода.
func (s *TwoFAService) RequireIfEnabled(user models.User, code string) error {
	if !user.TwoFAEnabled {
		return nil
	}
	return s.Require(user, code)
}
