package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/config"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/notify"
	"github.com/scripta/scripta-api/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// ResetAcknowledgement is returned for every password reset request, whether
// or not the email belongs to an account.
const ResetAcknowledgement = "If that email exists, a reset code has been sent."

// Notifier delivers best-effort notifications. It never reports failure.
type Notifier interface {
	Send(ctx context.Context, kind notify.Kind, to string, data map[string]string)
}

type AuthService struct {
	userRepo    repository.UserRepository
	planRepo    repository.PlanRepository
	sessionRepo repository.SessionRepository
	pendingRepo repository.PendingLoginRepository
	resetRepo   repository.PasswordResetRepository
	notifier    Notifier
	cfg         *config.Config
	logger      zerolog.Logger
	now         func() time.Time
}

func NewAuthService(repos *repository.Repositories, notifier Notifier, cfg *config.Config, logger zerolog.Logger) *AuthService {
	return &AuthService{
		userRepo:    repos.User,
		planRepo:    repos.Plan,
		sessionRepo: repos.Session,
		pendingRepo: repos.PendingLogin,
		resetRepo:   repos.PasswordReset,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger.With().Str("service", "AuthService").Logger(),
		now:         time.Now,
	}
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	IP        string
	UserAgent string
}

type LoginInput struct {
	Identifier string
	Password   string
	IP         string
	UserAgent  string
}

type VerifyLoginInput struct {
	Email string
	Code  string
}

type ResetPasswordInput struct {
	Email       string
	Code        string
	NewPassword string
}

type ChangePasswordInput struct {
	OldPassword string
	NewPassword string
}

type AuthResult struct {
	User  *domain.User
	Token string
}

type LoginStatus string

const (
	LoginStatusLoggedIn             LoginStatus = "logged_in"
	LoginStatusVerificationRequired LoginStatus = "verification_required"
)

// LoginResult is either a logged-in result carrying a token, or a request to
// verify the emailed code through Next.
type LoginResult struct {
	Status LoginStatus
	User   *domain.User
	Token  string
	Next   string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	email := normalizeEmail(input.Email)

	if err := s.checkPasswordStrength(input.Password); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrConflict
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}

	plan, err := s.planRepo.GetByName(ctx, domain.PlanFreemium)
	switch {
	case err == nil:
		user.PlanID = &plan.ID
	case errors.Is(err, domain.ErrNotFound):
		// No plan seeded: the configured fallback limit applies.
	default:
		return nil, err
	}

	// A concurrent registration can still lose the unique constraint race.
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	user.Plan = plan

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user registered")
	s.notifier.Send(ctx, notify.KindWelcome, user.Email, map[string]string{"username": user.Username})

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	identifier := strings.TrimSpace(input.Identifier)
	user, err := s.userRepo.GetByIdentifier(ctx, identifier)
	if err != nil && strings.Contains(identifier, "@") && errors.Is(err, domain.ErrNotFound) {
		user, err = s.userRepo.GetByEmail(ctx, normalizeEmail(identifier))
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	ip, ua := orUnknown(input.IP), orUnknown(input.UserAgent)

	_, err = s.sessionRepo.FindTrusted(ctx, user.ID, ip, ua)
	if err == nil {
		token, err := s.issueToken(user)
		if err != nil {
			return nil, err
		}
		s.logger.Info().Str("user_id", user.ID.String()).Msg("login from trusted device")
		return &LoginResult{Status: LoginStatusLoggedIn, User: user, Token: token}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	pending := &domain.PendingLogin{
		ID:        uuid.New(),
		UserID:    user.ID,
		Code:      code,
		IPAddress: ip,
		UserAgent: ua,
		ExpiresAt: s.now().Add(s.cfg.LoginCodeTTL),
		CreatedAt: s.now(),
	}
	if err := s.pendingRepo.Replace(ctx, pending); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("ip", ip).Msg("login verification required")
	s.notifier.Send(ctx, notify.KindLoginCode, user.Email, map[string]string{
		"username":  user.Username,
		"code":      code,
		"ip":        ip,
		"userAgent": ua,
	})

	return &LoginResult{
		Status: LoginStatusVerificationRequired,
		User:   user,
		Next:   "/api/v1/auth/verify-login",
	}, nil
}

func (s *AuthService) VerifyLogin(ctx context.Context, input VerifyLoginInput) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidOrExpiredCode
		}
		return nil, err
	}

	pending, err := s.pendingRepo.Consume(ctx, user.ID, strings.TrimSpace(input.Code), s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidOrExpiredCode
		}
		return nil, err
	}

	session := &domain.TrustedSession{
		ID:        uuid.New(),
		UserID:    user.ID,
		IPAddress: pending.IPAddress,
		UserAgent: pending.UserAgent,
		CreatedAt: s.now(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("session_id", session.ID.String()).Msg("device trusted")
	s.notifier.Send(ctx, notify.KindNewLogin, user.Email, map[string]string{
		"username": user.Username,
		"ip":       pending.IPAddress,
	})

	return &AuthResult{User: user, Token: token}, nil
}

// RequestPasswordReset always answers with ResetAcknowledgement. Unknown
// emails, requests inside the cooldown window and storage failures are only
// visible in the logs.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) string {
	if err := s.requestPasswordReset(ctx, normalizeEmail(email)); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.logger.Debug().Msg("password reset requested for unknown email")
		case errors.Is(err, domain.ErrRateLimited):
			s.logger.Warn().Msg("password reset rate limited")
		default:
			s.logger.Error().Err(err).Msg("password reset request failed")
		}
	}
	return ResetAcknowledgement
}

func (s *AuthService) requestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	latest, err := s.resetRepo.Latest(ctx, user.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if latest != nil && s.now().Sub(latest.CreatedAt) < s.cfg.ResetCooldown {
		return domain.ErrRateLimited
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	req := &domain.PasswordResetRequest{
		ID:        uuid.New(),
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: s.now().Add(s.cfg.ResetCodeTTL),
		CreatedAt: s.now(),
	}
	if err := s.resetRepo.Replace(ctx, req); err != nil {
		return err
	}

	s.notifier.Send(ctx, notify.KindPasswordReset, user.Email, map[string]string{
		"username": user.Username,
		"code":     code,
	})
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidOrExpiredCode
		}
		return err
	}

	// The code is checked before any password rule so that callers without a
	// live code learn nothing about the account.
	code := strings.TrimSpace(input.Code)
	if _, err := s.resetRepo.Find(ctx, user.ID, code, s.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidOrExpiredCode
		}
		return err
	}

	if err := s.checkNewPassword(user, input.NewPassword); err != nil {
		return err
	}

	if _, err := s.resetRepo.Consume(ctx, user.ID, code, s.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidOrExpiredCode
		}
		return err
	}

	if err := s.replacePassword(ctx, user, input.NewPassword); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("password reset")
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, p domain.Principal, input ChangePasswordInput) error {
	user, err := s.userRepo.GetByID(ctx, p.UserID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.OldPassword)); err != nil {
		return domain.ErrInvalidCredentials
	}

	if err := s.checkNewPassword(user, input.NewPassword); err != nil {
		return err
	}

	if err := s.replacePassword(ctx, user, input.NewPassword); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("password changed")
	s.notifier.Send(ctx, notify.KindPasswordChanged, user.Email, map[string]string{"username": user.Username})
	return nil
}

func (s *AuthService) Me(ctx context.Context, p domain.Principal) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, p.UserID)
}

// PurgeExpiredCodes deletes pending logins and reset requests past their expiry.
func (s *AuthService) PurgeExpiredCodes(ctx context.Context) (int64, error) {
	now := s.now()
	logins, err := s.pendingRepo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	resets, err := s.resetRepo.DeleteExpired(ctx, now)
	if err != nil {
		return logins, err
	}
	return logins + resets, nil
}

// replacePassword stores the new hash and revokes every trusted session so
// all devices must verify again.
func (s *AuthService) replacePassword(ctx context.Context, user *domain.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	return s.sessionRepo.DeleteByUserID(ctx, user.ID)
}

func (s *AuthService) checkNewPassword(user *domain.User, password string) error {
	if err := s.checkPasswordStrength(password); err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil {
		return domain.ErrPasswordReuse
	}
	return nil
}

func (s *AuthService) checkPasswordStrength(password string) error {
	if len(password) < s.cfg.MinPasswordLength {
		return &domain.WeakPasswordError{MinLength: s.cfg.MinPasswordLength}
	}
	return nil
}

func (s *AuthService) issueToken(user *domain.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      user.ID.String(),
		"username": user.Username,
		"email":    user.Email,
		"role":     string(user.Role),
		"exp":      now.Add(s.cfg.JWTExpiration).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ValidateToken verifies a session token and returns the principal it names.
func (s *AuthService) ValidateToken(tokenString string) (*domain.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	username, _ := claims["username"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if role == "" {
		role = string(domain.RoleUser)
	}

	return &domain.Principal{
		UserID:   userID,
		Username: username,
		Email:    email,
		Role:     domain.Role(role),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
