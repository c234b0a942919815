package auth

import (
	"strings"
	"testing"
	"time"

	"timecapsule/backend/internal/auth/jwt"
	"timecapsule/backend/internal/domain"
	"timecapsule/backend/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *memory.Store) {
	store := memory.NewStore()
	tokens := jwt.NewManager(strings.Repeat("a", 32), "test", 15*time.Minute, 7*24*time.Hour)
	return NewService(store, store, tokens), store
}

func TestAuthService_Register(t *testing.T) {
	service, _ := newTestService()

	user, err := service.Register(RegisterInput{
		Username: "testuser",
		Email:    "Test@Example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "testuser", user.Username)
	assert.Equal(t, "test@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "Password123!", user.PasswordHash)
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	service, _ := newTestService()

	_, err := service.Register(RegisterInput{
		Username: "testuser",
		Email:    "test1@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	_, err = service.Register(RegisterInput{
		Username: "testuser",
		Email:    "test2@example.com",
		Password: "Password123!",
	})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	service, store := newTestService()

	err := store.CreateUser(&domain.User{
		ID:           "user-1",
		Username:     "testuser1",
		Email:        "test@example.com",
		PasswordHash: "somehash",
		IsActive:     true,
	})
	require.NoError(t, err)

	_, err = service.Register(RegisterInput{
		Username: "testuser2",
		Email:    "test@example.com",
		Password: "Password123!",
	})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestAuthService_Register_InvalidInput(t *testing.T) {
	service, _ := newTestService()

	_, err := service.Register(RegisterInput{
		Username: "testuser",
		Email:    "not-an-email",
		Password: "Password123!",
	})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = service.Register(RegisterInput{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "short",
	})
	assert.Error(t, err)
}

func TestAuthService_Login(t *testing.T) {
	service, _ := newTestService()

	_, err := service.Register(RegisterInput{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	user, pair, err := service.Login(LoginInput{
		Identifier: "testuser",
		Password:   "Password123!",
	})
	require.NoError(t, err)
	assert.Equal(t, "testuser", user.Username)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64((15 * time.Minute).Seconds()), pair.ExpiresIn)
}

func TestAuthService_Login_WithEmail(t *testing.T) {
	service, _ := newTestService()

	_, err := service.Register(RegisterInput{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	user, _, err := service.Login(LoginInput{
		Identifier: "test@example.com",
		Password:   "Password123!",
	})
	require.NoError(t, err)
	assert.Equal(t, "testuser", user.Username)
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	service, _ := newTestService()

	_, err := service.Register(RegisterInput{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	_, _, err = service.Login(LoginInput{
		Identifier: "testuser",
		Password:   "WrongPassword123!",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = service.Login(LoginInput{
		Identifier: "nonexistent",
		Password:   "Password123!",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	service, store := newTestService()

	user, err := service.Register(RegisterInput{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	user.IsActive = false
	require.NoError(t, store.UpdateUser(user))

	_, _, err = service.Login(LoginInput{
		Identifier: "testuser",
		Password:   "Password123!",
	})
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestAuthService_Refresh_Rotation(t *testing.T) {
	service, _ := newTestService()

	_, err := service.Register(RegisterInput{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	_, pair, err := service.Login(LoginInput{
		Identifier: "testuser",
		Password:   "Password123!",
	})
	require.NoError(t, err)

	newPair, err := service.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, newPair.AccessToken)
	assert.NotEmpty(t, newPair.RefreshToken)

	// 旧刷新令牌已被轮换吊销，再次使用必须失败
	_, err = service.Refresh(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestAuthService_Refresh_RejectsAccessToken(t *testing.T) {
	service, _ := newTestService()

	_, err := service.Register(RegisterInput{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	_, pair, err := service.Login(LoginInput{
		Identifier: "testuser",
		Password:   "Password123!",
	})
	require.NoError(t, err)

	_, err = service.Refresh(pair.AccessToken)
	assert.ErrorIs(t, err, jwt.ErrWrongTokenType)
}

func TestAuthService_Refresh_Invalid(t *testing.T) {
	service, _ := newTestService()

	_, err := service.Refresh("invalid-refresh-token")
	assert.Error(t, err)
}

func TestAuthService_Logout_RevokesAccessToken(t *testing.T) {
	service, _ := newTestService()

	_, err := service.Register(RegisterInput{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	_, pair, err := service.Login(LoginInput{
		Identifier: "testuser",
		Password:   "Password123!",
	})
	require.NoError(t, err)

	claims, err := service.Authenticate(pair.AccessToken)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.UserID)

	require.NoError(t, service.Logout(pair.AccessToken))

	_, err = service.Authenticate(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestAuthService_GetUserByID(t *testing.T) {
	service, _ := newTestService()

	registered, err := service.Register(RegisterInput{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	user, err := service.GetUserByID(registered.ID)
	require.NoError(t, err)
	assert.Equal(t, "testuser", user.Username)
	assert.Equal(t, "test@example.com", user.Email)

	_, err = service.GetUserByID("non-existent-id")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthService_ChangePassword(t *testing.T) {
	service, _ := newTestService()

	registered, err := service.Register(RegisterInput{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	err = service.ChangePassword(registered.ID, "Password123!", "NewPassword123!")
	require.NoError(t, err)

	// 新密码可登录
	_, _, err = service.Login(LoginInput{
		Identifier: "testuser",
		Password:   "NewPassword123!",
	})
	assert.NoError(t, err)

	// 旧密码失效
	_, _, err = service.Login(LoginInput{
		Identifier: "testuser",
		Password:   "Password123!",
	})
	assert.Error(t, err)
}

func TestAuthService_ChangePassword_WrongOldPassword(t *testing.T) {
	service, _ := newTestService()

	registered, err := service.Register(RegisterInput{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)

	err = service.ChangePassword(registered.ID, "WrongPassword123!", "NewPassword123!")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid old password")
}
