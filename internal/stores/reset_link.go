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

const resetLinkRecordVersionV1 = 1

var (
	ErrResetNotFound         = errors.New("reset link not found")
	ErrResetSecretMismatch   = errors.New("reset link secret mismatch")
	ErrResetAttemptsExceeded = errors.New("reset link attempts exceeded")
	ErrResetRedisUnavailable = errors.New("reset link redis unavailable")
)

// ResetLink backs a mailed password-reset token.
type ResetLink struct {
	UserID     string
	Email      string
	SecretHash [32]byte
	ExpiresAt  int64
	Attempts   uint16
}

func (r *ResetLink) expiry() int64           { return r.ExpiresAt }
func (r *ResetLink) digest() [32]byte        { return r.SecretHash }
func (r *ResetLink) encode() ([]byte, error) { return encodeResetLink(r) }

func (r *ResetLink) incrementAttempts() uint16 {
	r.Attempts++
	return r.Attempts
}

type ResetLinkStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewResetLinkStore(redisClient redis.UniversalClient, prefix string) *ResetLinkStore {
	if prefix == "" {
		prefix = "rcl"
	}
	return &ResetLinkStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ResetLinkStore) key(resetID string) string {
	return s.prefix + ":" + resetID
}

func (s *ResetLinkStore) Save(ctx context.Context, resetID string, record *ResetLink, ttl time.Duration) error {
	encoded, err := encodeResetLink(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(resetID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

func (s *ResetLinkStore) Consume(ctx context.Context, resetID string, secretHash [32]byte, maxAttempts int) (*ResetLink, error) {
	return consume(ctx, s.redis, s.key(resetID), secretHash, maxAttempts, decodeResetLink, consumeErrors{
		notFound:  ErrResetNotFound,
		mismatch:  ErrResetSecretMismatch,
		exhausted: ErrResetAttemptsExceeded,
		backend:   ErrResetRedisUnavailable,
	})
}

func (s *ResetLinkStore) Get(ctx context.Context, resetID string) (*ResetLink, error) {
	data, err := s.redis.Get(ctx, s.key(resetID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	record, err := decodeResetLink(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrResetNotFound
	}
	return record, nil
}

func encodeResetLink(record *ResetLink) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(resetLinkRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.UserID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, record.Email); err != nil {
		return nil, err
	}
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeResetLink(data []byte) (*ResetLink, error) {
	reader := bytes.NewReader(data)
	if err := readVersion(reader, resetLinkRecordVersionV1); err != nil {
		return nil, err
	}

	record := &ResetLink{}
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
	if record.Email, err = readString(reader); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}
	return record, nil
}
