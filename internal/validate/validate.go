// Package validate holds the local, pre-flight input checks of the recovery
// flow. Nothing here performs I/O.
package validate

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

var (
	ErrEmailRequired    = errors.New("email required")
	ErrEmailInvalid     = errors.New("email invalid")
	ErrPhoneInvalid     = errors.New("phone number invalid")
	ErrOTPRequired      = errors.New("verification code required")
	ErrPasswordRequired = errors.New("password required")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordTooShort = errors.New("password too short")
)

var (
	phonePattern = regexp.MustCompile(`^(\+\d{10,15}|\d{10})$`)
	localPattern = regexp.MustCompile(`^\d{10}$`)
	digitsOnly   = regexp.MustCompile(`^\d{1,4}$`)
)

// Email trims raw and returns it when it passes the configured bar.
// strict additionally requires a bare RFC 5322 address.
func Email(raw string, strict bool) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", ErrEmailRequired
	}
	if strict {
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndexByte(email, '@')+1:], ".") {
			return "", ErrEmailInvalid
		}
	}
	return email, nil
}

// Phone checks raw against the accepted shapes and returns the E.164 form
// sent to the provider. A bare 10-digit local number gets "+"+countryCode
// prepended; international input passes through unchanged.
func Phone(raw, countryCode string) (string, error) {
	phone := strings.TrimSpace(raw)
	if !phonePattern.MatchString(phone) {
		return "", ErrPhoneInvalid
	}
	if localPattern.MatchString(phone) {
		return "+" + countryCode + phone, nil
	}
	return phone, nil
}

// CountryCode reports whether cc is a usable calling code (1–4 digits, no "+").
func CountryCode(cc string) bool {
	return digitsOnly.MatchString(cc)
}

func OTP(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return "", ErrOTPRequired
	}
	return code, nil
}

// PasswordPair requires both values present and equal. minLen <= 0 disables
// the length floor. Passwords are compared byte-for-byte and never trimmed.
func PasswordPair(password, confirm string, minLen int) error {
	if password == "" || confirm == "" {
		return ErrPasswordRequired
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	if minLen > 0 && len([]rune(password)) < minLen {
		return ErrPasswordTooShort
	}
	return nil
}
