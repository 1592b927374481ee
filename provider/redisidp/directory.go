package redisidp

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrUserNotFound is returned by a Directory when no user matches.
var ErrUserNotFound = errors.New("user not found")

// User is the directory view of an account.
type User struct {
	ID           string
	Email        string
	Phone        string
	PasswordHash string
}

// Directory is the account store the provider reads users from and writes
// password hashes to. Phone numbers are E.164.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByPhone(ctx context.Context, phone string) (User, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// OTPSender delivers one-time codes.
type OTPSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// LinkSender delivers reset tokens.
type LinkSender interface {
	SendResetLink(ctx context.Context, email, token string) error
}

// Courier delivers secrets to the user out of band.
type Courier interface {
	OTPSender
	LinkSender
}

// SplitCourier routes codes and links over separate transports.
type SplitCourier struct {
	OTP   OTPSender
	Links LinkSender
}

func (c SplitCourier) SendOTP(ctx context.Context, phone, code string) error {
	if c.OTP == nil {
		return errors.New("no otp transport configured")
	}
	return c.OTP.SendOTP(ctx, phone, code)
}

func (c SplitCourier) SendResetLink(ctx context.Context, email, token string) error {
	if c.Links == nil {
		return errors.New("no reset link transport configured")
	}
	return c.Links.SendResetLink(ctx, email, token)
}

// MemoryDirectory is an in-process Directory for tests and demos.
type MemoryDirectory struct {
	mu      sync.RWMutex
	users   map[string]User
	byEmail map[string]string
	byPhone map[string]string
}

func NewMemoryDirectory(users ...User) *MemoryDirectory {
	d := &MemoryDirectory{
		users:   make(map[string]User, len(users)),
		byEmail: make(map[string]string, len(users)),
		byPhone: make(map[string]string, len(users)),
	}
	for _, u := range users {
		d.Put(u)
	}
	return d
}

// Put inserts or replaces u by ID.
func (d *MemoryDirectory) Put(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.users[u.ID]; ok {
		delete(d.byEmail, strings.ToLower(old.Email))
		delete(d.byPhone, old.Phone)
	}
	d.users[u.ID] = u
	if u.Email != "" {
		d.byEmail[strings.ToLower(u.Email)] = u.ID
	}
	if u.Phone != "" {
		d.byPhone[u.Phone] = u.ID
	}
}

func (d *MemoryDirectory) Get(userID string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	return u, ok
}

func (d *MemoryDirectory) FindByEmail(_ context.Context, email string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lookup(d.byEmail, strings.ToLower(email))
}

func (d *MemoryDirectory) FindByPhone(_ context.Context, phone string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lookup(d.byPhone, phone)
}

func (d *MemoryDirectory) lookup(index map[string]string, key string) (User, error) {
	id, ok := index[key]
	if !ok || key == "" {
		return User{}, ErrUserNotFound
	}
	return d.users[id], nil
}

func (d *MemoryDirectory) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	d.users[userID] = u
	return nil
}
