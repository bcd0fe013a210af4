package services_test

import (
	"context"
	"testing"
	"time"

	"planning-poker/auth"
	"planning-poker/errors"
	"planning-poker/infrastructure/storage"
	"planning-poker/mocks"
	"planning-poker/services"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("secret", 24*time.Hour)
	svc := services.NewAuthService(mockRepo, tokens)
	ctx := context.Background()

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		password := "ComplexPass123!"

		// Expect CreateUser to receive a hashed password, never the plain one
		mockRepo.EXPECT().
			CreateUser(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, u storage.User) (storage.User, error) {
				req.Equal("test@example.com", u.Email)
				req.NotEqual(password, u.PasswordHash)
				u.ID = "user-uuid"
				return u, nil
			}).
			Times(1)

		token, user, err := svc.Register(ctx, " test@example.com ", "Alice", password)

		req.NoError(err)
		req.NotEmpty(token)
		req.Equal("user-uuid", user.ID)
		claims, err := tokens.ValidateToken(token.String())
		req.NoError(err)
		req.Equal("user-uuid", claims.UserID)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		token, _, err := svc.Register(ctx, "test@example.com", "Alice", "simplepassword")

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
	})

	t.Run("should fail when the email is malformed", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		_, _, err := svc.Register(ctx, "not-an-email", "Alice", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrInvalidRequest)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser(gomock.Any(), gomock.Any()).
			Return(storage.User{}, errors.ErrUserAlreadyExists).
			Times(1)

		_, _, err := svc.Register(ctx, "duplicate@example.com", "Alice", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := services.NewAuthService(mockRepo, auth.NewTokenManager("secret", time.Hour))
	ctx := context.Background()

	hash, err := auth.HashPassword("CorrectPass123!")
	require.NoError(t, err)
	stored := storage.User{ID: "u1", Email: "user@example.com", Name: "Bob", PasswordHash: hash}

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUserByEmail(gomock.Any(), "user@example.com").Return(stored, nil)

		token, user, err := svc.Login(ctx, "user@example.com", "CorrectPass123!")

		req.NoError(err)
		req.NotEmpty(token)
		req.Equal("u1", user.ID)
	})

	t.Run("should fail with a wrong password", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUserByEmail(gomock.Any(), "user@example.com").Return(stored, nil)

		_, _, err := svc.Login(ctx, "user@example.com", "WrongPass123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should not reveal that the user is unknown", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUserByEmail(gomock.Any(), "ghost@example.com").Return(storage.User{}, errors.ErrUserNotFound)

		_, _, err := svc.Login(ctx, "ghost@example.com", "CorrectPass123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should surface store failures", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUserByEmail(gomock.Any(), gomock.Any()).Return(storage.User{}, errors.ErrStoreUnavailable)

		_, _, err := svc.Login(ctx, "user@example.com", "CorrectPass123!")

		req.ErrorIs(err, errors.ErrStoreUnavailable)
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("secret", time.Hour)
	svc := services.NewAuthService(mockRepo, tokens)
	ctx := context.Background()

	t.Run("should resolve the profile of a valid token", func(t *testing.T) {
		req := require.New(t)
		token, err := tokens.GenerateToken("u1")
		req.NoError(err)
		mockRepo.EXPECT().GetUserByID(gomock.Any(), "u1").
			Return(storage.User{ID: "u1", Name: "Bob", AvatarURL: "https://avatars.example/bob.png"}, nil)

		profile, err := svc.Authenticate(ctx, token)

		req.NoError(err)
		req.Equal("u1", profile.UserID)
		req.Equal("Bob", profile.Name)
		req.Equal("https://avatars.example/bob.png", profile.AvatarURL)
	})

	t.Run("should reject a forged token without touching the store", func(t *testing.T) {
		req := require.New(t)
		forged, err := auth.NewTokenManager("other", time.Hour).GenerateToken("u1")
		req.NoError(err)
		mockRepo.EXPECT().GetUserByID(gomock.Any(), gomock.Any()).Times(0)

		_, err = svc.Authenticate(ctx, forged)

		req.ErrorIs(err, errors.ErrInvalidToken)
	})

	t.Run("should reject tokens of deleted users", func(t *testing.T) {
		req := require.New(t)
		token, err := tokens.GenerateToken("gone")
		req.NoError(err)
		mockRepo.EXPECT().GetUserByID(gomock.Any(), "gone").Return(storage.User{}, errors.ErrUserNotFound)

		_, err = svc.Authenticate(ctx, token)

		req.ErrorIs(err, errors.ErrInvalidToken)
	})
}
