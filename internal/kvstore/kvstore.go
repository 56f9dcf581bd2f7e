// Package kvstore holds short-lived values in redis: password reset codes and
// failed admin login counters.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrMissing = errors.New("key not found or expired")

type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func OTPKey(purpose, email string) string {
	return fmt.Sprintf("otp_%s_%s", purpose, email)
}

func AdminLoginKey(ip string) string {
	return fmt.Sprintf("admin_login_failures_%s", ip)
}

func (s *Store) SetOTP(ctx context.Context, key, otp string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, otp, ttl).Err()
}

func (s *Store) GetOTP(ctx context.Context, key string) (string, error) {
	otp, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMissing
	}
	return otp, err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// IncrementAttempts bumps the counter and starts its window on the first hit.
func (s *Store) IncrementAttempts(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (s *Store) GetAttempts(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
