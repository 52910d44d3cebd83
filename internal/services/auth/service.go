package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/amouradev/amoura/backend/internal/domain/enums"
	pgrepo "github.com/amouradev/amoura/backend/internal/repo/postgres"
)

const (
	MinRefreshTTL = 30 * 24 * time.Hour
	MaxRefreshTTL = 90 * 24 * time.Hour

	DefaultCodeTTL     = 5 * time.Minute
	DefaultMaxAttempts = 5

	codeLength = 6
)

type SessionStore interface {
	Create(ctx context.Context, session SessionRecord, refreshToken string) error
	GetSession(ctx context.Context, sid string) (SessionRecord, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (SessionRecord, error)
	RotateRefresh(ctx context.Context, sid, oldRefreshToken, newRefreshToken string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, sid string) error
	DeleteAllForUser(ctx context.Context, userID int64) error
}

type CodeStore interface {
	SaveCode(ctx context.Context, phone, code string, ttl time.Duration) error
	ConsumeCode(ctx context.Context, phone, code string, maxAttempts int64) (bool, error)
}

type UserStore interface {
	GetOrCreateByPhone(ctx context.Context, phone string) (pgrepo.UserRecord, error)
}

// LedgerProvisioner seeds the credit ledger for a freshly logged-in user
// and tears it down again on logout. The next login re-seeds it.
type LedgerProvisioner interface {
	Ensure(ctx context.Context, userID int64, tier enums.Tier, timezone string) error
	Clear(ctx context.Context, userID int64) error
}

type Service struct {
	jwt         *JWTManager
	sessions    SessionStore
	codes       CodeStore
	users       UserStore
	ledger      LedgerProvisioner
	refreshTTL  time.Duration
	codeTTL     time.Duration
	maxAttempts int64
	now         func() time.Time
}

type Dependencies struct {
	JWT      *JWTManager
	Sessions SessionStore
	Codes    CodeStore
	Users    UserStore
	Ledger   LedgerProvisioner
}

type Config struct {
	RefreshTTL  time.Duration
	CodeTTL     time.Duration
	MaxAttempts int64
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.RefreshTTL < MinRefreshTTL {
		cfg.RefreshTTL = MinRefreshTTL
	}
	if cfg.RefreshTTL > MaxRefreshTTL {
		cfg.RefreshTTL = MaxRefreshTTL
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = DefaultCodeTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	return &Service{
		jwt:         deps.JWT,
		sessions:    deps.Sessions,
		codes:       deps.Codes,
		users:       deps.Users,
		ledger:      deps.Ledger,
		refreshTTL:  cfg.RefreshTTL,
		codeTTL:     cfg.CodeTTL,
		maxAttempts: cfg.MaxAttempts,
		now:         time.Now,
	}
}

// RequestCode issues a one-time login code for the phone and stores it
// with a TTL. Delivery is the caller's concern; the code comes back so
// the transport can hand it to an SMS gateway.
func (s *Service) RequestCode(ctx context.Context, phone string) (string, error) {
	if s.codes == nil {
		return "", fmt.Errorf("code store is nil")
	}

	normalized, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}

	code, err := newLoginCode()
	if err != nil {
		return "", fmt.Errorf("generate login code: %w", err)
	}

	if err := s.codes.SaveCode(ctx, normalized, code, s.codeTTL); err != nil {
		return "", fmt.Errorf("save login code: %w", err)
	}

	return code, nil
}

// VerifyCode checks the one-time code, get-or-creates the user and opens
// a session. The user's credit ledger is seeded before tokens are issued.
func (s *Service) VerifyCode(ctx context.Context, phone, code string) (AuthResult, error) {
	if s.codes == nil || s.users == nil {
		return AuthResult{}, fmt.Errorf("auth dependencies are not configured")
	}

	normalized, err := NormalizePhone(phone)
	if err != nil {
		return AuthResult{}, err
	}
	if strings.TrimSpace(code) == "" {
		return AuthResult{}, ErrInvalidInput
	}

	ok, err := s.codes.ConsumeCode(ctx, normalized, code, s.maxAttempts)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("consume login code: %w", err)
	}
	if !ok {
		return AuthResult{}, ErrUnauthorized
	}

	user, err := s.users.GetOrCreateByPhone(ctx, normalized)
	if err != nil {
		return AuthResult{}, fmt.Errorf("get or create user: %w", err)
	}

	if s.ledger != nil {
		if err := s.ledger.Ensure(ctx, user.ID, enums.TierFree, ""); err != nil {
			return AuthResult{}, fmt.Errorf("seed credit ledger: %w", err)
		}
	}

	result, err := s.issueForUser(ctx, user.ID, user.Role)
	if err != nil {
		return AuthResult{}, err
	}
	result.Me.Phone = user.Phone

	return result, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return AuthResult{}, ErrInvalidInput
	}

	session, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("get refresh token session: %w", err)
	}
	if s.now().After(session.ExpiresAt) {
		return AuthResult{}, ErrUnauthorized
	}

	newRefreshToken, err := NewRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}

	newExpiresAt := s.now().Add(s.refreshTTL)
	if err := s.sessions.RotateRefresh(ctx, session.SID, refreshToken, newRefreshToken, newExpiresAt); err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	accessToken, accessExpires, err := s.jwt.GenerateAccessToken(session.UserID, session.SID, session.Role)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate access token: %w", err)
	}

	return AuthResult{
		AccessToken:   accessToken,
		RefreshToken:  newRefreshToken,
		AccessExpires: accessExpires,
		Me: Me{
			ID:   session.UserID,
			Role: session.Role,
		},
	}, nil
}

// Logout ends the session and clears the user's ledger entry; credits
// are re-seeded from the tier caps at the next login.
func (s *Service) Logout(ctx context.Context, sid string) error {
	if strings.TrimSpace(sid) == "" {
		return ErrInvalidInput
	}

	session, getErr := s.sessions.GetSession(ctx, sid)
	if getErr != nil && !errors.Is(getErr, ErrSessionNotFound) {
		return fmt.Errorf("get session: %w", getErr)
	}

	if err := s.sessions.DeleteSession(ctx, sid); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if getErr == nil && s.ledger != nil {
		if err := s.ledger.Clear(ctx, session.UserID); err != nil {
			return fmt.Errorf("clear ledger: %w", err)
		}
	}
	return nil
}

func (s *Service) LogoutAll(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrInvalidInput
	}
	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("delete all sessions: %w", err)
	}
	if s.ledger != nil {
		if err := s.ledger.Clear(ctx, userID); err != nil {
			return fmt.Errorf("clear ledger: %w", err)
		}
	}
	return nil
}

func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (AccessClaims, error) {
	claims, err := s.jwt.ParseAccessToken(accessToken)
	if err != nil {
		return AccessClaims{}, ErrUnauthorized
	}

	session, err := s.sessions.GetSession(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return AccessClaims{}, ErrUnauthorized
		}
		return AccessClaims{}, fmt.Errorf("get session: %w", err)
	}

	if session.UserID != claims.UserID || session.Role != claims.Role {
		return AccessClaims{}, ErrUnauthorized
	}
	if s.now().After(session.ExpiresAt) {
		return AccessClaims{}, ErrUnauthorized
	}

	return claims, nil
}

func (s *Service) issueForUser(ctx context.Context, userID int64, role string) (AuthResult, error) {
	if strings.TrimSpace(role) == "" {
		role = string(enums.RoleUser)
	}

	sessionID, err := NewSessionID()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate session id: %w", err)
	}
	refreshToken, err := NewRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}

	sessionExpiresAt := s.now().Add(s.refreshTTL)
	session := SessionRecord{
		SID:       sessionID,
		UserID:    userID,
		Role:      role,
		ExpiresAt: sessionExpiresAt,
	}
	if err := s.sessions.Create(ctx, session, refreshToken); err != nil {
		return AuthResult{}, fmt.Errorf("create session: %w", err)
	}

	accessToken, accessExpires, err := s.jwt.GenerateAccessToken(userID, sessionID, role)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate access token: %w", err)
	}

	return AuthResult{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpires: accessExpires,
		Me: Me{
			ID:   userID,
			Role: role,
		},
	}, nil
}

func newLoginCode() (string, error) {
	digits := make([]byte, codeLength)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
