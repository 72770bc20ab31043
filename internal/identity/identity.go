package identity

import (
	"context"

	"github.com/geocoder89/bugzapp/internal/domain/user"
)

// Identity is the caller decoded from a verified bearer token. It lives for
// one request only.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == user.RoleAdmin
}

type ctxKey string

const (
	keyIdentity  ctxKey = "identity"
	keyRequestID ctxKey = "request_id"
)

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, keyIdentity, id)
}

func From(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(keyIdentity).(Identity)

	return v, ok && v.ID != ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

func RequestIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)

	return v, ok && v != ""
}
