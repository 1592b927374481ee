package redisidp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goRecovery "github.com/agriskills/goRecovery"
	"github.com/agriskills/goRecovery/internal"
	"github.com/agriskills/goRecovery/internal/limiters"
	"github.com/agriskills/goRecovery/internal/stores"
	"github.com/agriskills/goRecovery/jwt"
	"github.com/agriskills/goRecovery/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Error codes carried in goRecovery.ProviderError.Code.
const (
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeInvalidCode        = "INVALID_CODE"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeRateLimited        = "RATE_LIMITED"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
)

const (
	msgUserNotFound       = "There is no user record corresponding to this identifier."
	msgInvalidCode        = "The verification code is invalid."
	msgTooManyAttempts    = "Too many attempts. Request a new code."
	msgSessionExpired     = "The verification session has expired. Start again."
	msgRateLimited        = "Too many requests. Try again later."
	msgBackendUnavailable = "Service temporarily unavailable. Try again."
)

const (
	opResetEmail    = "send_reset_email"
	opIssueOTP      = "issue_otp"
	opConfirmOTP    = "confirm_otp"
	opSetCredential = "set_credential"
	opCompleteReset = "complete_email_reset"
)

// Provider implements goRecovery.IdentityProvider on Redis.
type Provider struct {
	config     Config
	directory  Directory
	courier    Courier
	challenges *stores.ChallengeStore
	links      *stores.ResetLinkStore
	ledger     *stores.GrantLedger
	limiter    *limiters.RecoveryLimiter
	hasher     *password.Argon2
	grants     *jwt.Manager
	logger     *zap.Logger
}

var _ goRecovery.IdentityProvider = (*Provider)(nil)

// Option customizes a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger. The default discards.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger.Named("redisidp")
		}
	}
}

// New wires a Provider. cfg.Grant must carry signing keys.
func New(rdb redis.UniversalClient, dir Directory, courier Courier, cfg Config, opts ...Option) (*Provider, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	if dir == nil {
		return nil, errors.New("directory is required")
	}
	if courier == nil {
		return nil, errors.New("courier is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}
	grants, err := jwt.NewManager(cfg.Grant)
	if err != nil {
		return nil, fmt.Errorf("grant config: %w", err)
	}

	p := &Provider{
		config:     cfg,
		directory:  dir,
		courier:    courier,
		challenges: stores.NewChallengeStore(rdb, cfg.KeyPrefix+":otp"),
		links:      stores.NewResetLinkStore(rdb, cfg.KeyPrefix+":link"),
		ledger:     stores.NewGrantLedger(rdb, cfg.KeyPrefix+":grant"),
		hasher:     hasher,
		grants:     grants,
		logger:     zap.NewNop(),
	}
	if cfg.Throttle.Enabled {
		p.limiter = limiters.NewRecoveryLimiter(rdb, limiters.RecoveryConfig{
			KeyPrefix:                 cfg.KeyPrefix,
			EnableDestinationThrottle: true,
			EnableIPThrottle:          cfg.Throttle.PerIP,
			MaxIssuesPerWindow:        cfg.Throttle.MaxIssuesPerWindow,
			MaxConfirmsPerWindow:      cfg.Throttle.MaxConfirmsPerWindow,
			Window:                    cfg.Throttle.Window,
		})
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// SendPasswordResetNotification mails a single-use reset token to email.
func (p *Provider) SendPasswordResetNotification(ctx context.Context, email string) error {
	if err := p.limiter.CheckIssue(ctx, email, goRecovery.ClientIPFromContext(ctx)); err != nil {
		return limiterError(opResetEmail, err)
	}

	user, err := p.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			if p.config.ConcealUnknownUsers {
				p.logger.Debug("reset link concealed for unknown email")
				return nil
			}
			return providerError(opResetEmail, CodeUserNotFound, msgUserNotFound, err)
		}
		return backendError(opResetEmail, err)
	}

	id, err := internal.NewRecordID()
	if err != nil {
		return backendError(opResetEmail, err)
	}
	secret, err := internal.NewResetSecret()
	if err != nil {
		return backendError(opResetEmail, err)
	}

	record := &stores.ResetLink{
		UserID:     user.ID,
		Email:      email,
		SecretHash: internal.HashResetSecret(secret),
		ExpiresAt:  time.Now().Add(p.config.ResetLinkTTL).Unix(),
	}
	if err := p.links.Save(ctx, id.String(), record, p.config.ResetLinkTTL); err != nil {
		return backendError(opResetEmail, err)
	}

	if err := p.courier.SendResetLink(ctx, email, internal.EncodeResetToken(id, secret)); err != nil {
		return backendError(opResetEmail, err)
	}
	p.logger.Info("reset link issued", zap.String("user_id", user.ID))
	return nil
}

// IssueOTPChallenge texts a fresh code to phone and returns the challenge ID
// as the ticket.
func (p *Provider) IssueOTPChallenge(ctx context.Context, phone string) (goRecovery.VerificationTicket, error) {
	if err := p.limiter.CheckIssue(ctx, phone, goRecovery.ClientIPFromContext(ctx)); err != nil {
		return "", limiterError(opIssueOTP, err)
	}

	conceal := false
	user, err := p.directory.FindByPhone(ctx, phone)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return "", backendError(opIssueOTP, err)
		}
		if !p.config.ConcealUnknownUsers {
			return "", providerError(opIssueOTP, CodeUserNotFound, msgUserNotFound, err)
		}
		conceal = true
	}

	id, err := internal.NewRecordID()
	if err != nil {
		return "", backendError(opIssueOTP, err)
	}
	challengeID := id.String()

	code, err := internal.NewOTP(p.config.OTPDigits)
	if err != nil {
		return "", backendError(opIssueOTP, err)
	}

	record := &stores.OTPChallenge{
		UserID:    user.ID,
		Phone:     phone,
		CodeHash:  internal.HashCode(challengeID, code),
		ExpiresAt: time.Now().Add(p.config.OTPTTL).Unix(),
	}
	if err := p.challenges.Save(ctx, challengeID, record, p.config.OTPTTL); err != nil {
		return "", backendError(opIssueOTP, err)
	}

	if conceal {
		// the challenge exists so the ticket looks real, but UserID is empty
		// and ConfirmOTP refuses it
		return goRecovery.VerificationTicket(challengeID), nil
	}

	if err := p.courier.SendOTP(ctx, phone, code); err != nil {
		_ = p.challenges.Delete(context.WithoutCancel(ctx), challengeID)
		return "", backendError(opIssueOTP, err)
	}
	p.logger.Info("otp challenge issued", zap.String("user_id", user.ID))
	return goRecovery.VerificationTicket(challengeID), nil
}

// ConfirmOTP redeems code against ticket. A wrong code leaves the challenge
// in place until MaxConfirmAttempts is reached.
func (p *Provider) ConfirmOTP(ctx context.Context, ticket goRecovery.VerificationTicket, code string) (goRecovery.ConfirmedIdentity, error) {
	challengeID := string(ticket)
	if _, err := internal.ParseRecordID(challengeID); err != nil {
		return goRecovery.ConfirmedIdentity{}, providerError(opConfirmOTP, CodeSessionExpired, msgSessionExpired, err)
	}
	if err := p.limiter.CheckConfirm(ctx, challengeID, goRecovery.ClientIPFromContext(ctx)); err != nil {
		return goRecovery.ConfirmedIdentity{}, limiterError(opConfirmOTP, err)
	}

	record, err := p.challenges.Consume(ctx, challengeID, internal.HashCode(challengeID, code), p.config.MaxConfirmAttempts)
	switch {
	case err == nil:
	case errors.Is(err, stores.ErrChallengeCodeMismatch):
		return goRecovery.ConfirmedIdentity{}, providerError(opConfirmOTP, CodeInvalidCode, msgInvalidCode, err)
	case errors.Is(err, stores.ErrChallengeAttemptsExceeded):
		return goRecovery.ConfirmedIdentity{}, providerError(opConfirmOTP, CodeTooManyAttempts, msgTooManyAttempts, err)
	case errors.Is(err, stores.ErrChallengeNotFound):
		return goRecovery.ConfirmedIdentity{}, providerError(opConfirmOTP, CodeSessionExpired, msgSessionExpired, err)
	default:
		return goRecovery.ConfirmedIdentity{}, backendError(opConfirmOTP, err)
	}

	if record.UserID == "" {
		return goRecovery.ConfirmedIdentity{}, providerError(opConfirmOTP, CodeInvalidCode, msgInvalidCode, nil)
	}

	token, _, err := p.grants.Issue(record.UserID, record.Phone)
	if err != nil {
		return goRecovery.ConfirmedIdentity{}, backendError(opConfirmOTP, err)
	}
	return goRecovery.ConfirmedIdentity{
		Subject:     record.UserID,
		PhoneNumber: record.Phone,
		Token:       token,
	}, nil
}

// SetCredential verifies and redeems the reset grant in identity, then
// stores the Argon2id hash of newPassword. A rejected password does not
// consume the grant.
func (p *Provider) SetCredential(ctx context.Context, identity goRecovery.ConfirmedIdentity, newPassword string) error {
	claims, err := p.grants.Parse(identity.Token)
	if err != nil {
		return providerError(opSetCredential, CodeSessionExpired, msgSessionExpired, err)
	}
	if claims.Subject != identity.Subject {
		return providerError(opSetCredential, CodeSessionExpired, msgSessionExpired, nil)
	}

	hash, err := p.hashPassword(opSetCredential, newPassword)
	if err != nil {
		return err
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if err := p.ledger.Redeem(ctx, claims.ID, ttl); err != nil {
		if errors.Is(err, stores.ErrGrantAlreadyUsed) {
			return providerError(opSetCredential, CodeSessionExpired, msgSessionExpired, err)
		}
		return backendError(opSetCredential, err)
	}

	if err := p.directory.UpdatePasswordHash(ctx, claims.Subject, hash); err != nil {
		_ = p.ledger.Release(context.WithoutCancel(ctx), claims.ID)
		if errors.Is(err, ErrUserNotFound) {
			return providerError(opSetCredential, CodeUserNotFound, msgUserNotFound, err)
		}
		return backendError(opSetCredential, err)
	}

	p.forgetIssues(ctx, claims.Phone)
	p.logger.Info("password updated", zap.String("user_id", claims.Subject), zap.String("via", "otp"))
	return nil
}

// CompleteEmailReset redeems a mailed reset token and sets newPassword. It
// is the landing half of the email path.
func (p *Provider) CompleteEmailReset(ctx context.Context, token, newPassword string) error {
	id, secret, err := internal.DecodeResetToken(token)
	if err != nil {
		return providerError(opCompleteReset, CodeSessionExpired, msgSessionExpired, err)
	}

	hash, err := p.hashPassword(opCompleteReset, newPassword)
	if err != nil {
		return err
	}

	record, err := p.links.Consume(ctx, id.String(), internal.HashResetSecret(secret), p.config.MaxConfirmAttempts)
	switch {
	case err == nil:
	case errors.Is(err, stores.ErrResetSecretMismatch):
		return providerError(opCompleteReset, CodeInvalidCode, msgInvalidCode, err)
	case errors.Is(err, stores.ErrResetAttemptsExceeded):
		return providerError(opCompleteReset, CodeTooManyAttempts, msgTooManyAttempts, err)
	case errors.Is(err, stores.ErrResetNotFound):
		return providerError(opCompleteReset, CodeSessionExpired, msgSessionExpired, err)
	default:
		return backendError(opCompleteReset, err)
	}

	if err := p.directory.UpdatePasswordHash(ctx, record.UserID, hash); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return providerError(opCompleteReset, CodeUserNotFound, msgUserNotFound, err)
		}
		return backendError(opCompleteReset, err)
	}

	p.forgetIssues(ctx, record.Email)
	p.logger.Info("password updated", zap.String("user_id", record.UserID), zap.String("via", "email"))
	return nil
}

// forgetIssues lets a user who just recovered request codes again at once.
func (p *Provider) forgetIssues(ctx context.Context, destination string) {
	if err := p.limiter.ResetIssue(context.WithoutCancel(ctx), destination); err != nil {
		p.logger.Warn("issue throttle not cleared", zap.Error(err))
	}
}

// VerifyPassword reports whether plain matches the stored hash for email.
func (p *Provider) VerifyPassword(ctx context.Context, email, plain string) (bool, error) {
	user, err := p.directory.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if user.PasswordHash == "" {
		return false, nil
	}
	return p.hasher.Verify(plain, user.PasswordHash)
}

func (p *Provider) hashPassword(op, plain string) (string, error) {
	hash, err := p.hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, password.ErrPasswordPolicy) {
			return "", providerError(op, CodeWeakPassword, weakPasswordMessage(err), err)
		}
		return "", backendError(op, err)
	}
	return hash, nil
}

func weakPasswordMessage(err error) string {
	if rest, ok := strings.CutPrefix(err.Error(), password.ErrPasswordPolicy.Error()+": "); ok && rest != "" {
		return "Password " + rest + "."
	}
	return "Password is too weak."
}

func providerError(op, code, message string, err error) error {
	return &goRecovery.ProviderError{Op: op, Code: code, Message: message, Err: err}
}

func backendError(op string, err error) error {
	return providerError(op, CodeBackendUnavailable, msgBackendUnavailable, err)
}

func limiterError(op string, err error) error {
	if errors.Is(err, limiters.ErrRecoveryRateLimited) {
		return providerError(op, CodeRateLimited, msgRateLimited, err)
	}
	return backendError(op, err)
}
