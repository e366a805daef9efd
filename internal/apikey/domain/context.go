package domain

import (
	"context"
	"strings"
)

// clientIPKey is a context key type for the address of the calling client.
type clientIPKey struct{}

// WithClientIP stores the address of the calling client in the context. Verification
// records it as the key's last used address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the client address stored by WithClientIP, or nil.
func ClientIPFromContext(ctx context.Context) *string {
	ip, ok := ctx.Value(clientIPKey{}).(string)
	ip = strings.TrimSpace(ip)
	if !ok || ip == "" {
		return nil
	}
	return &ip
}
