//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"strings"

	"planning-poker/auth"
	"planning-poker/domain"
	"planning-poker/errors"
	"planning-poker/infrastructure/storage"
)

type IAuthService interface {
	Login(ctx context.Context, email, password string) (Token, storage.User, error)
	Register(ctx context.Context, email, name, password string) (Token, storage.User, error)
	Authenticate(ctx context.Context, token string) (domain.Profile, error)
}

type Token string

func (t Token) String() string {
	return string(t)
}

type AuthService struct {
	userRepository storage.IUserRepository
	tokens         *auth.TokenManager
}

func NewAuthService(repo storage.IUserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, email, name, password string) (Token, storage.User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	// Business rules first, before any expensive hashing
	if err := auth.ValidateRegister(auth.RegisterRequest{Email: email, Name: name, Password: password}); err != nil {
		if errors.Is(err, errors.ErrInvalidPassword) {
			return "", storage.User{}, err
		}
		return "", storage.User{}, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", storage.User{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(ctx, storage.User{
		Email:        email,
		Name:         name,
		PasswordHash: hashedPassword,
	})
	if err != nil {
		return "", storage.User{}, err
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return "", storage.User{}, err
	}
	return Token(token), user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (Token, storage.User, error) {
	user, err := s.userRepository.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		// Same error for unknown users, to prevent enumeration
		if errors.KindOf(err) == errors.KindStoreUnavailable {
			return "", storage.User{}, err
		}
		return "", storage.User{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", storage.User{}, errors.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return "", storage.User{}, err
	}
	return Token(token), user, nil
}

// Authenticate resolves a token into the profile shown in rooms.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Profile, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return domain.Profile{}, err
	}
	user, err := s.userRepository.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return domain.Profile{}, errors.ErrInvalidToken
		}
		return domain.Profile{}, err
	}
	return ToProfile(user), nil
}

func ToProfile(user storage.User) domain.Profile {
	return domain.Profile{UserID: user.ID, Name: user.Name, AvatarURL: user.AvatarURL}
}
