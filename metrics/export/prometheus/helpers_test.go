package prometheus

import (
	"context"

	goRecovery "github.com/agriskills/goRecovery"
)

type nopProvider struct{}

func (nopProvider) SendPasswordResetNotification(context.Context, string) error { return nil }

func (nopProvider) IssueOTPChallenge(context.Context, string) (goRecovery.VerificationTicket, error) {
	return "t", nil
}

func (nopProvider) ConfirmOTP(context.Context, goRecovery.VerificationTicket, string) (goRecovery.ConfirmedIdentity, error) {
	return goRecovery.ConfirmedIdentity{Subject: "u"}, nil
}

func (nopProvider) SetCredential(context.Context, goRecovery.ConfirmedIdentity, string) error {
	return nil
}
