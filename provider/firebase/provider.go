package firebase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goRecovery "github.com/agriskills/goRecovery"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

const requestTypePasswordReset = "PASSWORD_RESET"

// ErrRecaptchaMissing is returned by IssueOTPChallenge when ctx carries no
// reCAPTCHA token.
var ErrRecaptchaMissing = errors.New("recaptcha token missing")

type recaptchaKey struct{}

// WithRecaptchaToken attaches the client's reCAPTCHA response to ctx.
func WithRecaptchaToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, recaptchaKey{}, token)
}

func recaptchaFromContext(ctx context.Context) string {
	token, _ := ctx.Value(recaptchaKey{}).(string)
	return token
}

// Config selects the Identity Toolkit project.
type Config struct {
	APIKey string
	// Endpoint overrides the API base URL, for emulators and tests.
	Endpoint   string
	HTTPClient *http.Client
	// ContinueURL is sent with reset emails when set.
	ContinueURL string
}

// Provider calls the Identity Toolkit on behalf of a recovery controller.
type Provider struct {
	relyingParty *identitytoolkit.RelyingpartyService
	continueURL  string
	logger       *zap.Logger
}

var _ goRecovery.IdentityProvider = (*Provider)(nil)

// New builds the underlying service client from cfg.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	if cfg.APIKey == "" && cfg.HTTPClient == nil {
		return nil, errors.New("firebase: APIKey or HTTPClient is required")
	}

	var opts []option.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		relyingParty: svc.Relyingparty,
		continueURL:  cfg.ContinueURL,
		logger:       logger.Named("firebase"),
	}, nil
}

func (p *Provider) SendPasswordResetNotification(ctx context.Context, email string) error {
	_, err := p.relyingParty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		Email:       email,
		RequestType: requestTypePasswordReset,
		ContinueUrl: p.continueURL,
	}).Context(ctx).Do()
	if err != nil {
		return mapError("send_reset_email", err)
	}
	return nil
}

// IssueOTPChallenge asks Firebase to text a code. The returned ticket is the
// sessionInfo Firebase uses to match the code.
func (p *Provider) IssueOTPChallenge(ctx context.Context, phone string) (goRecovery.VerificationTicket, error) {
	recaptcha := recaptchaFromContext(ctx)
	if recaptcha == "" {
		return "", &goRecovery.ProviderError{
			Op:      "issue_otp",
			Code:    "MISSING_RECAPTCHA_TOKEN",
			Message: "reCAPTCHA verification is required.",
			Err:     ErrRecaptchaMissing,
		}
	}

	resp, err := p.relyingParty.SendVerificationCode(&identitytoolkit.IdentitytoolkitRelyingpartySendVerificationCodeRequest{
		PhoneNumber:    phone,
		RecaptchaToken: recaptcha,
	}).Context(ctx).Do()
	if err != nil {
		return "", mapError("issue_otp", err)
	}
	return goRecovery.VerificationTicket(resp.SessionInfo), nil
}

// ConfirmOTP exchanges the code for a Firebase ID token, carried as the
// identity token.
func (p *Provider) ConfirmOTP(ctx context.Context, ticket goRecovery.VerificationTicket, code string) (goRecovery.ConfirmedIdentity, error) {
	resp, err := p.relyingParty.VerifyPhoneNumber(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPhoneNumberRequest{
		SessionInfo: string(ticket),
		Code:        code,
	}).Context(ctx).Do()
	if err != nil {
		return goRecovery.ConfirmedIdentity{}, mapError("confirm_otp", err)
	}
	return goRecovery.ConfirmedIdentity{
		Subject:     resp.LocalId,
		PhoneNumber: resp.PhoneNumber,
		Token:       resp.IdToken,
	}, nil
}

func (p *Provider) SetCredential(ctx context.Context, identity goRecovery.ConfirmedIdentity, newPassword string) error {
	_, err := p.relyingParty.SetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		IdToken:  identity.Token,
		Password: newPassword,
	}).Context(ctx).Do()
	if err != nil {
		return mapError("set_credential", err)
	}
	p.logger.Info("password updated", zap.String("local_id", identity.Subject))
	return nil
}

// Firebase reports errors as "CODE" or "CODE : detail".
var messages = map[string]string{
	"EMAIL_NOT_FOUND":                "There is no user record corresponding to this identifier. The user may have been deleted.",
	"INVALID_EMAIL":                  "The email address is badly formatted.",
	"INVALID_PHONE_NUMBER":           "The format of the phone number provided is incorrect.",
	"INVALID_CODE":                   "The sms verification code used to create the phone auth credential is invalid.",
	"INVALID_SESSION_INFO":           "The verification ID used to create the phone auth credential is invalid.",
	"SESSION_EXPIRED":                "The sms code has expired. Please re-send the verification code to try again.",
	"TOO_MANY_ATTEMPTS_TRY_LATER":    "We have blocked all requests from this device due to unusual activity. Try again later.",
	"QUOTA_EXCEEDED":                 "The sms quota for this project has been exceeded.",
	"INVALID_ID_TOKEN":               "The user's credential is no longer valid. The user must sign in again.",
	"TOKEN_EXPIRED":                  "The user's credential is no longer valid. The user must sign in again.",
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": "This operation is sensitive and requires recent authentication.",
	"USER_DISABLED":                  "The user account has been disabled by an administrator.",
	"WEAK_PASSWORD":                  "The given password is invalid.",
}

func mapError(op string, err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		// transport failure or context expiry; the controller classifies it
		return err
	}

	code, detail, _ := strings.Cut(apiErr.Message, ":")
	code = strings.TrimSpace(code)
	detail = strings.TrimSpace(detail)

	message := messages[code]
	if detail != "" {
		message = detail
	}
	if message == "" {
		message = apiErr.Message
	}
	if message == "" {
		message = http.StatusText(apiErr.Code)
	}

	return &goRecovery.ProviderError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
