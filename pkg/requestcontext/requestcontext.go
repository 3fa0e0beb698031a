// Package requestcontext carries per-request client metadata through
// context.Context so handlers and services stay decoupled from http.Request.
package requestcontext

import "context"

type clientIPKey struct{}
type userAgentKey struct{}

// WithClientMetadata stores the resolved client IP and raw User-Agent header.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, ip)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// ClientIP returns the client IP resolved by the metadata middleware, or "".
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// UserAgent returns the raw User-Agent header, or "".
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}
