package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxConsumeRetries = 4

// attemptRecord is a stored secret digest with an attempt counter.
type attemptRecord interface {
	expiry() int64
	digest() [32]byte
	incrementAttempts() uint16
	encode() ([]byte, error)
}

type consumeErrors struct {
	notFound  error
	mismatch  error
	exhausted error
	backend   error
}

// consume checks provided against the record at key inside a WATCH/MULTI
// cycle. A match deletes the record and returns it.
func consume[T attemptRecord](
	ctx context.Context,
	rdb redis.UniversalClient,
	key string,
	provided [32]byte,
	maxAttempts int,
	decode func([]byte) (T, error),
	errs consumeErrors,
) (T, error) {
	var zero T

	for i := 0; i < maxConsumeRetries; i++ {
		var matched T
		found := false

		err := rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decode(data)
			if err != nil {
				return err
			}

			remaining := time.Until(time.Unix(record.expiry(), 0))
			if remaining <= 0 {
				if err := deleteInTx(ctx, tx, key); err != nil {
					return err
				}
				return errs.notFound
			}

			want := record.digest()
			if subtle.ConstantTimeCompare(want[:], provided[:]) != 1 {
				if int(record.incrementAttempts()) >= maxAttempts {
					if err := deleteInTx(ctx, tx, key); err != nil {
						return err
					}
					return errs.exhausted
				}

				updated, err := record.encode()
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, remaining)
					return nil
				})
				if err != nil {
					return err
				}
				return errs.mismatch
			}

			if err := deleteInTx(ctx, tx, key); err != nil {
				return err
			}
			matched = record
			found = true
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return zero, errs.notFound
			case errors.Is(err, errs.notFound), errors.Is(err, errs.mismatch), errors.Is(err, errs.exhausted):
				return zero, err
			default:
				return zero, fmt.Errorf("%w: %v", errs.backend, err)
			}
		}
		if found {
			return matched, nil
		}
	}

	return zero, fmt.Errorf("%w: too much contention", errs.backend)
}

func deleteInTx(ctx context.Context, tx *redis.Tx, key string) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	})
	return err
}
