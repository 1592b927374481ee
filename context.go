package goRecovery

import "context"

type clientIPContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. It is copied into
// audit events and handed to providers that throttle per IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// ClientIPFromContext returns the address set by [WithClientIP], or "".
func ClientIPFromContext(ctx context.Context) string {
	return clientIPFromContext(ctx)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
