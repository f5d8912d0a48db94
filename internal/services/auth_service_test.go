package services_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/internal/email"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/jwt"
)

func authTestConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse battery"), bcrypt.MinCost)
	require.NoError(t, err)
	return &config.Config{
		Server: config.ServerConfig{BaseURL: "https://talendro.test"},
		UserSession: config.UserSessionConfig{
			LoginTokenTTLMinutes: 15,
		},
		Admin: config.AdminConfig{
			AllowedEmails: []string{"owner@talendro.test"},
			PasswordHash:  string(hash),
		},
	}
}

func newAuthService(t *testing.T) (*services.AuthService, *MockProfileRepository, *MockEmailClient) {
	t.Helper()
	mockProfiles := new(MockProfileRepository)
	mockEmail := new(MockEmailClient)
	tokens := jwt.NewTokenManager("test-secret", "talendro-test", 24)
	service := services.NewAuthService(mockProfiles, mockEmail, tokens, authTestConfig(t))
	return service, mockProfiles, mockEmail
}

func TestRequestLogin_SendsLinkWithHashedToken(t *testing.T) {
	service, mockProfiles, mockEmail := newAuthService(t)
	ctx := context.Background()

	var storedHash string
	var sentHTML string

	mockProfiles.On("GetByEmail", ctx, "user@example.com").
		Return(&models.Profile{ID: "p1", Email: "user@example.com"}, nil).Once()
	mockProfiles.On("SetLoginToken", ctx, "user@example.com", mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) { storedHash = args.String(2) }).Return(nil).Once()
	mockEmail.On("Send", ctx, mock.MatchedBy(func(req email.SendRequest) bool {
		sentHTML = req.HTML
		return req.To.Email == "user@example.com" && req.Template == email.TemplateMagicLink
	})).Return(nil).Once()

	resp, err := service.RequestLogin(ctx, &models.RequestLoginRequest{Email: "user@example.com"})

	require.NoError(t, err)
	assert.True(t, resp.Success)

	// The raw token rides in the link; only its hash hits the database.
	start := strings.Index(sentHTML, "token=")
	require.GreaterOrEqual(t, start, 0)
	token := sentHTML[start+len("token="):]
	if end := strings.IndexAny(token, "\"&"); end >= 0 {
		token = token[:end]
	}
	assert.Len(t, token, 64)
	sum := sha256.Sum256([]byte(token))
	assert.Equal(t, hex.EncodeToString(sum[:]), storedHash)
	assert.NotContains(t, storedHash, token)
}

func TestRequestLogin_UnknownEmailGetsIdenticalResponse(t *testing.T) {
	service, mockProfiles, mockEmail := newAuthService(t)
	ctx := context.Background()

	mockProfiles.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.ErrNotFound).Once()

	resp, err := service.RequestLogin(ctx, &models.RequestLoginRequest{Email: "ghost@example.com"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "If an account exists for that address, a sign-in link is on its way.", resp.Message)
	mockEmail.AssertNotCalled(t, "Send")
	mockProfiles.AssertNotCalled(t, "SetLoginToken")
}

func TestVerifyLogin_ConsumesTokenAndIssuesJWT(t *testing.T) {
	service, mockProfiles, _ := newAuthService(t)
	ctx := context.Background()

	token := strings.Repeat("ab", 32)
	sum := sha256.Sum256([]byte(token))

	mockProfiles.On("ConsumeLoginToken", ctx, hex.EncodeToString(sum[:]), mock.AnythingOfType("time.Time")).
		Return(&models.Profile{ID: "p1", Email: "user@example.com", FullName: "Ada", IsPro: true}, nil).Once()

	session, signed, err := service.VerifyLogin(ctx, &models.VerifyLoginRequest{Token: token})

	require.NoError(t, err)
	assert.Equal(t, "p1", session.ProfileID)
	assert.True(t, session.IsPro)
	assert.Empty(t, session.Role)

	claims, err := jwt.NewTokenManager("test-secret", "talendro-test", 24).ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.True(t, claims.IsPro)
	assert.Empty(t, claims.Role)
}

func TestVerifyLogin_SpentOrExpiredTokenRejected(t *testing.T) {
	service, mockProfiles, _ := newAuthService(t)
	ctx := context.Background()

	mockProfiles.On("ConsumeLoginToken", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(nil, apperrors.ErrNotFound).Once()

	_, _, err := service.VerifyLogin(ctx, &models.VerifyLoginRequest{Token: strings.Repeat("cd", 32)})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)
}

func TestAdminLogin_AllowListedWithCorrectPassword(t *testing.T) {
	service, mockProfiles, _ := newAuthService(t)
	ctx := context.Background()

	mockProfiles.On("GetByEmail", ctx, "owner@talendro.test").Return(nil, apperrors.ErrNotFound).Once()

	session, signed, err := service.AdminLogin(ctx, &models.AdminLoginRequest{
		Email:    "  Owner@Talendro.test ",
		Password: "correct horse battery",
	})

	require.NoError(t, err)
	assert.Equal(t, "admin", session.Role)
	assert.Equal(t, "owner@talendro.test", session.Email)

	claims, err := jwt.NewTokenManager("test-secret", "talendro-test", 24).ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
	assert.False(t, claims.IsPro)
}

func TestAdminLogin_WrongPassword(t *testing.T) {
	service, _, _ := newAuthService(t)

	_, _, err := service.AdminLogin(context.Background(), &models.AdminLoginRequest{
		Email:    "owner@talendro.test",
		Password: "wrong password",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)
}

func TestAdminLogin_NotOnAllowList(t *testing.T) {
	service, mockProfiles, _ := newAuthService(t)

	_, _, err := service.AdminLogin(context.Background(), &models.AdminLoginRequest{
		Email:    "intruder@example.com",
		Password: "correct horse battery",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)
	mockProfiles.AssertNotCalled(t, "GetByEmail")
}

func TestAdminLogin_ProfileNamePickedUpWhenPresent(t *testing.T) {
	service, mockProfiles, _ := newAuthService(t)
	ctx := context.Background()

	mockProfiles.On("GetByEmail", ctx, "owner@talendro.test").
		Return(&models.Profile{ID: "p9", Email: "owner@talendro.test", FullName: "Site Owner"}, nil).Once()

	session, _, err := service.AdminLogin(ctx, &models.AdminLoginRequest{
		Email:    "owner@talendro.test",
		Password: "correct horse battery",
	})

	require.NoError(t, err)
	assert.Equal(t, "p9", session.ProfileID)
	assert.Equal(t, "Site Owner", session.FullName)
}
