package goRecovery

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"
)

type fakeProvider struct {
	mu sync.Mutex

	calls map[string]int

	emails    []string
	phones    []string
	codes     []string
	tickets   []VerificationTicket
	passwords []string

	resetErr   error
	issueErr   error
	confirmErr func(code string) error
	setErr     error

	identity   ConfirmedIdentity
	emptyReply bool

	// gate, when set, holds every call until it is closed or ctx ends.
	gate    chan struct{}
	entered chan string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls:    make(map[string]int),
		identity: ConfirmedIdentity{Subject: "u1", PhoneNumber: "+919876543210", Token: "tok"},
	}
}

func (p *fakeProvider) wait(ctx context.Context, op string) error {
	p.mu.Lock()
	p.calls[op]++
	gate, entered := p.gate, p.entered
	p.mu.Unlock()

	if entered != nil {
		entered <- op
	}
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakeProvider) SendPasswordResetNotification(ctx context.Context, email string) error {
	if err := p.wait(ctx, "reset"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emails = append(p.emails, email)
	return p.resetErr
}

func (p *fakeProvider) IssueOTPChallenge(ctx context.Context, phone string) (VerificationTicket, error) {
	if err := p.wait(ctx, "issue"); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phones = append(p.phones, phone)
	if p.issueErr != nil {
		return "", p.issueErr
	}
	if p.emptyReply {
		return "", nil
	}
	return VerificationTicket("ticket-" + strconv.Itoa(len(p.phones))), nil
}

func (p *fakeProvider) ConfirmOTP(ctx context.Context, ticket VerificationTicket, code string) (ConfirmedIdentity, error) {
	if err := p.wait(ctx, "confirm"); err != nil {
		return ConfirmedIdentity{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tickets = append(p.tickets, ticket)
	p.codes = append(p.codes, code)
	if p.confirmErr != nil {
		if err := p.confirmErr(code); err != nil {
			return ConfirmedIdentity{}, err
		}
	}
	if p.emptyReply {
		return ConfirmedIdentity{}, nil
	}
	return p.identity, nil
}

func (p *fakeProvider) SetCredential(ctx context.Context, identity ConfirmedIdentity, password string) error {
	if err := p.wait(ctx, "set"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passwords = append(p.passwords, password)
	return p.setErr
}

func (p *fakeProvider) callCount(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *fakeProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, v := range p.calls {
		n += v
	}
	return n
}

func (p *fakeProvider) block() {
	p.mu.Lock()
	p.gate = make(chan struct{})
	p.entered = make(chan string, 8)
	p.mu.Unlock()
}

func (p *fakeProvider) release() {
	p.mu.Lock()
	gate := p.gate
	p.gate = nil
	p.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) last(t *testing.T) Notification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) == 0 {
		t.Fatal("expected a notification")
	}
	return n.msgs[len(n.msgs)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

func newTestEngine(t *testing.T, p IdentityProvider, n NotificationSink, mutate func(*Config)) *Engine {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := New().
		WithConfig(cfg).
		WithProvider(p).
		WithNotificationSink(n).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func startController(t *testing.T, engine *Engine) *Controller {
	t.Helper()

	c, err := engine.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return c
}

// toOTPEntry drives a fresh controller to StageOTPEntry.
func toOTPEntry(t *testing.T, c *Controller) {
	t.Helper()

	if err := c.SelectMethod(MethodPhone); err != nil {
		t.Fatalf("SelectMethod failed: %v", err)
	}
	if err := c.SubmitPhone(context.Background(), "9876543210"); err != nil {
		t.Fatalf("SubmitPhone failed: %v", err)
	}
}

func toPasswordReset(t *testing.T, c *Controller) {
	t.Helper()

	toOTPEntry(t, c)
	if err := c.SubmitOTP(context.Background(), "123456"); err != nil {
		t.Fatalf("SubmitOTP failed: %v", err)
	}
}

func waitEntered(t *testing.T, p *fakeProvider) string {
	t.Helper()

	p.mu.Lock()
	entered := p.entered
	p.mu.Unlock()

	select {
	case op := <-entered:
		return op
	case <-time.After(2 * time.Second):
		t.Fatal("provider call did not start")
		return ""
	}
}

func requireStateErr(t *testing.T, err, want error) {
	t.Helper()

	if !IsState(err) {
		t.Fatalf("expected StateError, got %v", err)
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
