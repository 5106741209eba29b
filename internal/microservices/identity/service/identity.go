package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"order-desk/internal/common/logger"
	"order-desk/internal/config"
	"order-desk/internal/connections/mailer"
	"order-desk/internal/domain"
	"order-desk/internal/microservices/identity/repository"
)

const minPasswordLen = 6

type IdentityServiceInterface interface {
	CreateUser(ctx context.Context, req domain.CreateUserRequest) (domain.User, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, req domain.LoginRequest) (string, domain.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	UpdateUser(ctx context.Context, id int64, u domain.UserUpdate) (domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type IdentityService struct {
	repo   repository.UserRepositoryInterface
	mail   mailer.Mailer
	tokens *Tokens
	lg     *logger.Logger
	cfg    config.AuthConfig
	now    func() time.Time
	cost   int
}

type Option func(*IdentityService)

func WithClock(now func() time.Time) Option {
	return func(s *IdentityService) { s.now = now }
}

// WithBcryptCost lowers the hashing cost, mostly for tests.
func WithBcryptCost(cost int) Option {
	return func(s *IdentityService) { s.cost = cost }
}

func NewIdentityService(repo repository.UserRepositoryInterface, m mailer.Mailer, tokens *Tokens,
	lg *logger.Logger, cfg config.AuthConfig, opts ...Option,
) *IdentityService {
	s := &IdentityService{repo: repo, mail: m, tokens: tokens, lg: lg, cfg: cfg, now: time.Now, cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(s)
	}
	return s
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *IdentityService) hash(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", domain.Validationf("password must be at least %d characters", minPasswordLen)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (s *IdentityService) link(kind, token string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/auth/" + kind + "/" + token
}

// CreateUser registers a cashier or waiter and mails a verification link.
// A failed mail is logged; the account still exists.
func (s *IdentityService) CreateUser(ctx context.Context, req domain.CreateUserRequest) (domain.User, error) {
	if req.Role != domain.RoleCashier && req.Role != domain.RoleWaiter {
		return domain.User{}, domain.ErrInvalidRole.Withf("invalid role %q, allowed roles: cashier, waiter", req.Role)
	}
	name, email := strings.TrimSpace(req.Name), normalizeEmail(req.Email)
	if name == "" || !strings.Contains(email, "@") {
		return domain.User{}, domain.Validationf("name and a valid email are required")
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return domain.User{}, err
	}
	token, err := randomToken()
	if err != nil {
		return domain.User{}, err
	}

	u, err := s.repo.Create(ctx, domain.User{
		Name: name, Email: email, PasswordHash: hash, Role: req.Role, VerificationToken: &token,
	})
	if err != nil {
		return domain.User{}, err
	}
	s.lg.Info("user_created", map[string]any{"user_id": u.ID, "role": u.Role})

	body := fmt.Sprintf("Hi %s,\n\nVerify your account: %s\n", name, s.link("verify", token))
	if err := s.mail.Send(ctx, email, "Verify your account", body); err != nil {
		s.lg.Error("verification_mail_failed", err, map[string]any{"user_id": u.ID})
	}
	return u, nil
}

func (s *IdentityService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return domain.Validationf("invalid or expired token")
	}
	u, err := s.repo.GetByVerificationToken(ctx, token)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.Validationf("invalid or expired token")
	}
	if err != nil {
		return err
	}
	if err := s.repo.MarkVerified(ctx, u.ID); err != nil {
		return err
	}
	s.lg.Info("user_verified", map[string]any{"user_id": u.ID})
	return nil
}

// Login only admits verified users. Unknown email, unverified account and wrong password look the same.
func (s *IdentityService) Login(ctx context.Context, req domain.LoginRequest) (string, domain.User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", domain.User{}, err
	}
	if !u.IsVerified {
		return "", domain.User{}, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return "", domain.User{}, domain.ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return "", domain.User{}, err
	}
	s.lg.Info("user_logged_in", map[string]any{"user_id": u.ID})
	return token, u, nil
}

func (s *IdentityService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	token, err := randomToken()
	if err != nil {
		return err
	}
	if err := s.repo.SetResetToken(ctx, u.ID, token, s.now().Add(s.cfg.ResetTTL)); err != nil {
		return err
	}
	body := fmt.Sprintf("Reset your password: %s\n\nThe link is valid for %s.\n", s.link("reset", token), s.cfg.ResetTTL)
	if err := s.mail.Send(ctx, u.Email, "Reset Password", body); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	s.lg.Info("password_reset_requested", map[string]any{"user_id": u.ID})
	return nil
}

func (s *IdentityService) ResetPassword(ctx context.Context, token, password string) error {
	u, err := s.repo.GetByResetToken(ctx, token, s.now())
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.Validationf("invalid or expired token")
	}
	if err != nil {
		return err
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, u.ID, hash); err != nil {
		return err
	}
	s.lg.Info("password_reset", map[string]any{"user_id": u.ID})
	return nil
}

func (s *IdentityService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.List(ctx)
}

func (s *IdentityService) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *IdentityService) UpdateUser(ctx context.Context, id int64, upd domain.UserUpdate) (domain.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) != "" {
		u.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil && strings.TrimSpace(*upd.Email) != "" {
		u.Email = normalizeEmail(*upd.Email)
		if !strings.Contains(u.Email, "@") {
			return domain.User{}, domain.Validationf("invalid email %q", *upd.Email)
		}
	}
	if upd.Role != nil && *upd.Role != "" {
		if !upd.Role.Valid() {
			return domain.User{}, domain.ErrInvalidRole.Withf("invalid role %q", *upd.Role)
		}
		u.Role = *upd.Role
	}
	saved, err := s.repo.Update(ctx, u)
	if err != nil {
		return domain.User{}, err
	}
	s.lg.Info("user_updated", map[string]any{"user_id": id})
	return saved, nil
}

func (s *IdentityService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.lg.Info("user_deleted", map[string]any{"user_id": id})
	return nil
}

// SeedManager creates the configured manager account, already verified, unless that email exists.
func (s *IdentityService) SeedManager(ctx context.Context) (bool, error) {
	email := normalizeEmail(s.cfg.SeedManagerEmail)
	if email == "" {
		return false, domain.Validationf("auth.seed_manager_email is not configured")
	}
	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return false, err
	}
	hash, err := s.hash(s.cfg.SeedManagerPassword)
	if err != nil {
		return false, err
	}
	name := strings.TrimSpace(s.cfg.SeedManagerName)
	if name == "" {
		name = "Manager"
	}
	u, err := s.repo.Create(ctx, domain.User{Name: name, Email: email, PasswordHash: hash, Role: domain.RoleManager, IsVerified: true})
	if err != nil {
		return false, err
	}
	s.lg.Info("manager_seeded", map[string]any{"user_id": u.ID})
	return true, nil
}
