package middleware

import (
	"context"
	"net"
	"net/http"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// SetRequestID stores the request id on ctx.
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the id assigned by RequestID, if any.
func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// clientIP returns the host part of RemoteAddr. Behind chi's RealIP this is
// the forwarded client address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
