package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
)

// RecordID names a reset link or challenge record in Redis.
type RecordID [16]byte

const (
	resetSecretSize   = 32
	resetTokenRawSize = len(RecordID{}) + resetSecretSize
)

func NewRecordID() (RecordID, error) {
	var id RecordID
	_, err := rand.Read(id[:])
	return id, err
}

func (r RecordID) String() string {
	// base64url, no padding
	return base64.RawURLEncoding.EncodeToString(r[:])
}

func ParseRecordID(s string) (RecordID, error) {
	var id RecordID

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid record id size")
	}

	copy(id[:], raw)
	return id, nil
}

func NewResetSecret() ([resetSecretSize]byte, error) {
	var secret [resetSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashResetSecret(secret [resetSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// HashCode digests a one-time code together with the challenge it belongs
// to, so equal codes on different challenges never share a digest.
func HashCode(challengeID, code string) [32]byte {
	return sha256.Sum256([]byte(challengeID + ":" + code))
}

// EncodeResetToken packs the record ID and secret into the opaque token
// mailed to the user.
func EncodeResetToken(id RecordID, secret [resetSecretSize]byte) string {
	var raw [resetTokenRawSize]byte
	copy(raw[:len(id)], id[:])
	copy(raw[len(id):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:])
}

func DecodeResetToken(token string) (RecordID, [resetSecretSize]byte, error) {
	var (
		id     RecordID
		secret [resetSecretSize]byte
	)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return id, secret, err
	}
	if len(raw) != resetTokenRawSize {
		return id, secret, errors.New("invalid reset token size")
	}

	copy(id[:], raw[:len(id)])
	copy(secret[:], raw[len(id):])
	return id, secret, nil
}

// NewOTP returns a uniformly random decimal code of the given length.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
