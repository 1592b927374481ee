package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeRecordVersionV1 = 1

var (
	ErrChallengeNotFound         = errors.New("otp challenge not found")
	ErrChallengeCodeMismatch     = errors.New("otp challenge code mismatch")
	ErrChallengeAttemptsExceeded = errors.New("otp challenge attempts exceeded")
	ErrChallengeBackend          = errors.New("otp challenge backend unavailable")
)

// OTPChallenge is an issued one-time code. The code itself is never stored.
type OTPChallenge struct {
	UserID    string
	Phone     string
	CodeHash  [32]byte
	ExpiresAt int64
	Attempts  uint16
}

func (c *OTPChallenge) expiry() int64           { return c.ExpiresAt }
func (c *OTPChallenge) digest() [32]byte        { return c.CodeHash }
func (c *OTPChallenge) encode() ([]byte, error) { return encodeOTPChallenge(c) }

func (c *OTPChallenge) incrementAttempts() uint16 {
	c.Attempts++
	return c.Attempts
}

type ChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewChallengeStore(redisClient redis.UniversalClient, prefix string) *ChallengeStore {
	if prefix == "" {
		prefix = "rco"
	}
	return &ChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ChallengeStore) key(challengeID string) string {
	return s.prefix + ":" + challengeID
}

func (s *ChallengeStore) Save(ctx context.Context, challengeID string, record *OTPChallenge, ttl time.Duration) error {
	encoded, err := encodeOTPChallenge(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

func (s *ChallengeStore) Get(ctx context.Context, challengeID string) (*OTPChallenge, error) {
	data, err := s.redis.Get(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	record, err := decodeOTPChallenge(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrChallengeNotFound
	}
	return record, nil
}

// Consume redeems the challenge when codeHash matches. A mismatch counts an
// attempt and keeps the challenge until maxAttempts is reached.
func (s *ChallengeStore) Consume(ctx context.Context, challengeID string, codeHash [32]byte, maxAttempts int) (*OTPChallenge, error) {
	return consume(ctx, s.redis, s.key(challengeID), codeHash, maxAttempts, decodeOTPChallenge, consumeErrors{
		notFound:  ErrChallengeNotFound,
		mismatch:  ErrChallengeCodeMismatch,
		exhausted: ErrChallengeAttemptsExceeded,
		backend:   ErrChallengeBackend,
	})
}

func (s *ChallengeStore) Delete(ctx context.Context, challengeID string) error {
	if err := s.redis.Del(ctx, s.key(challengeID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

func encodeOTPChallenge(record *OTPChallenge) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(challengeRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.UserID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.Phone); err != nil {
		return nil, err
	}
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeOTPChallenge(data []byte) (*OTPChallenge, error) {
	reader := bytes.NewReader(data)
	if err := readVersion(reader, challengeRecordVersionV1); err != nil {
		return nil, err
	}

	record := &OTPChallenge{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var err error
	if record.UserID, err = readString(reader); err != nil {
		return nil, err
	}
	if record.Phone, err = readString(reader); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}
	return record, nil
}
