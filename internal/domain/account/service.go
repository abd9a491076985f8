package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
)

// ErrInvalidCredentials is returned for every login failure so the
// response never reveals whether the email exists.
var ErrInvalidCredentials = fmt.Errorf("invalid credentials")

var validRoles = map[string]bool{
	"admin": true, "physician": true, "nurse": true,
	"registrar": true, "lab_tech": true, "billing": true,
}

type Service struct {
	accounts   Repository
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
	resetTTL   time.Duration
	logger     zerolog.Logger
}

func NewService(accounts Repository, signingKey []byte, issuer string, logger zerolog.Logger) *Service {
	return &Service{
		accounts:   accounts,
		signingKey: signingKey,
		issuer:     issuer,
		tokenTTL:   time.Hour,
		resetTTL:   30 * time.Minute,
		logger:     logger,
	}
}

func (s *Service) Register(ctx context.Context, email, password, role string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}
	if !validRoles[role] {
		return nil, fmt.Errorf("invalid role: %s", role)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	a := &Account{Email: email, PasswordHash: hash, Role: role, IsActive: true}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

// Login verifies credentials and issues an HS256 token carrying the
// account's role. Unknown email, wrong password and disabled account
// all map to the same error.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	a, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil || !a.IsActive || !CheckPassword(a.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		Roles: []string{a.Role},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// StartPasswordReset generates and stores a reset token for the email's
// account. An unknown email is not an error: it returns an empty token
// so the caller can respond identically either way. Only the token hash
// is persisted.
func (s *Service) StartPasswordReset(ctx context.Context, email string) (string, error) {
	a, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)
	expiresAt := time.Now().Add(s.resetTTL)
	if err := s.accounts.SetResetToken(ctx, a.ID, hashToken(token), expiresAt); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	s.logger.Info().Str("account_id", a.ID.String()).Msg("password reset requested")
	return token, nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return fmt.Errorf("invalid or expired reset token")
	}
	a, err := s.accounts.GetByResetTokenHash(ctx, hashToken(token))
	if err != nil {
		return fmt.Errorf("invalid or expired reset token")
	}
	if a.ResetTokenExpiresAt == nil || time.Now().After(*a.ResetTokenExpiresAt) {
		return fmt.Errorf("invalid or expired reset token")
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePassword(ctx, a.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.accounts.ClearResetToken(ctx, a.ID); err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	s.logger.Info().Str("account_id", a.ID.String()).Msg("password reset completed")
	return nil
}

func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.accounts.GetByID(ctx, id)
}
