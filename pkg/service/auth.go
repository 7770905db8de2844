package service

import (
	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/repository"
)

type AuthService struct {
	repos repository.Authorization
}

func NewAuthService(repos repository.Authorization) *AuthService {
	return &AuthService{repos: repos}
}

// Login — шов для исключённого UI: находит или создаёт пользователя.
func (s *AuthService) Login(username string) (models.User, error) {
	user, err := s.repos.GetUserByUsername(username)
	if err == nil {
		return user, nil
	}
	if err != models.ErrNotFound {
		return models.User{}, err
	}
	id, err := s.repos.CreateUser(username)
	if err != nil {
		return models.User{}, err
	}
	return s.repos.GetUser(id)
}

func (s *AuthService) GetUser(id int64) (models.User, error) {
	return s.repos.GetUser(id)
}
