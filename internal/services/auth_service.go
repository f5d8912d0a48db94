package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/internal/email"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/repository"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/jwt"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
)

const adminRole = "admin"

// AuthService handles passwordless sign-in for users and password sign-in
// for the admin area
type AuthService struct {
	profileRepo repository.ProfileDataSource
	emailClient email.ClientInterface
	tokens      *jwt.TokenManager
	config      *config.Config
	now         func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	profileRepo repository.ProfileDataSource,
	emailClient email.ClientInterface,
	tokens *jwt.TokenManager,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		profileRepo: profileRepo,
		emailClient: emailClient,
		tokens:      tokens,
		config:      cfg,
		now:         time.Now,
	}
}

// RequestLogin issues a magic link. The response is identical whether or not
// the email has an account, so the endpoint cannot be used to probe for
// registered addresses.
func (s *AuthService) RequestLogin(ctx context.Context, req *models.RequestLoginRequest) (*models.RequestLoginResponse, error) {
	if err := s.SendLoginLink(ctx, req.Email); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.AuthLoginRequests.WithLabelValues("unknown_email").Inc()
		} else {
			metrics.AuthLoginRequests.WithLabelValues("error").Inc()
			logger.Error("Magic link request failed", zap.Error(err))
		}
	} else {
		metrics.AuthLoginRequests.WithLabelValues("sent").Inc()
	}

	return &models.RequestLoginResponse{
		Success: true,
		Message: "If an account exists for that address, a sign-in link is on its way.",
	}, nil
}

// SendLoginLink generates a single-use token, stores its hash on the profile
// and emails the link. Only the hash is persisted; a database read can never
// yield a usable link.
func (s *AuthService) SendLoginLink(ctx context.Context, emailAddr string) error {
	if _, err := s.profileRepo.GetByEmail(ctx, emailAddr); err != nil {
		return err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate login token: %w", err)
	}
	token := hex.EncodeToString(raw)

	ttl := time.Duration(s.config.UserSession.LoginTokenTTLMinutes) * time.Minute
	if err := s.profileRepo.SetLoginToken(ctx, emailAddr, hashLoginToken(token), s.now().Add(ttl)); err != nil {
		return err
	}

	html, err := email.RenderMagicLink(email.MagicLinkData{
		LoginURL:       s.config.Server.BaseURL + "/auth/verify?token=" + token,
		ExpiresMinutes: s.config.UserSession.LoginTokenTTLMinutes,
	})
	if err != nil {
		return err
	}

	return s.emailClient.Send(ctx, email.SendRequest{
		To:       email.Address{Email: emailAddr},
		Subject:  "Your Talendro sign-in link",
		HTML:     html,
		Template: email.TemplateMagicLink,
	})
}

// VerifyLogin exchanges a magic-link token for a session. The token is
// consumed atomically, so a link clicked twice fails the second time.
func (s *AuthService) VerifyLogin(ctx context.Context, req *models.VerifyLoginRequest) (*models.UserSession, string, error) {
	profile, err := s.profileRepo.ConsumeLoginToken(ctx, hashLoginToken(req.Token), s.now())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.AuthLoginRequests.WithLabelValues("invalid_token").Inc()
			return nil, "", apperrors.AccessDeniedError("sign-in link is invalid or has expired")
		}
		return nil, "", err
	}

	signed, err := s.tokens.GenerateToken(profile.ID, profile.Email, profile.FullName, profile.IsPro)
	if err != nil {
		return nil, "", err
	}

	metrics.AuthLoginRequests.WithLabelValues("verified").Inc()
	logger.Info("User signed in", zap.String("profile_id", profile.ID))

	return &models.UserSession{
		ProfileID: profile.ID,
		Email:     profile.Email,
		FullName:  profile.FullName,
		IsPro:     profile.IsPro,
	}, signed, nil
}

// AdminLogin signs an admin in with email and password. Admin accounts share
// one configured bcrypt hash and must appear on the allow-list; both checks
// run on every attempt so failures take the same time regardless of which
// check failed.
func (s *AuthService) AdminLogin(ctx context.Context, req *models.AdminLoginRequest) (*models.UserSession, string, error) {
	allowed := false
	normalized := strings.ToLower(strings.TrimSpace(req.Email))
	for _, adminEmail := range s.config.Admin.AllowedEmails {
		if jwt.TimingSafeCompare(normalized, strings.ToLower(adminEmail)) {
			allowed = true
		}
	}

	passwordOK := bcrypt.CompareHashAndPassword(
		[]byte(s.config.Admin.PasswordHash), []byte(req.Password)) == nil

	if !allowed || !passwordOK {
		metrics.AuthLoginRequests.WithLabelValues("admin_denied").Inc()
		logger.Warn("Admin login rejected", zap.String("email", normalized))
		return nil, "", apperrors.AccessDeniedError("invalid admin credentials")
	}

	fullName := ""
	profileID := normalized
	if profile, err := s.profileRepo.GetByEmail(ctx, normalized); err == nil {
		fullName = profile.FullName
		profileID = profile.ID
	}

	signed, err := s.tokens.GenerateTokenWithRole(profileID, normalized, fullName, adminRole)
	if err != nil {
		return nil, "", err
	}

	metrics.AuthLoginRequests.WithLabelValues("admin_verified").Inc()
	logger.Info("Admin signed in", zap.String("email", normalized))

	return &models.UserSession{
		ProfileID: profileID,
		Email:     normalized,
		FullName:  fullName,
		Role:      adminRole,
	}, signed, nil
}

func hashLoginToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
