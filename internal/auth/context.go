package auth

import (
	"context"

	"github.com/ndenisov/cleanday/internal/model"
)

type userKey struct{}
type memberKey struct{}

// AuthContext identifies the authenticated user for a request.
type AuthContext struct {
	UserID   int64
	Username string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, userKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(userKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

// WithMember attaches the resolved apartment membership to the context.
func WithMember(ctx context.Context, m model.ApartmentMember) context.Context {
	return context.WithValue(ctx, memberKey{}, m)
}

func MemberFromContext(ctx context.Context) (model.ApartmentMember, bool) {
	m, ok := ctx.Value(memberKey{}).(model.ApartmentMember)
	return m, ok
}

func ApartmentID(ctx context.Context) int64 {
	m, ok := MemberFromContext(ctx)
	if !ok {
		return 0
	}
	return m.ApartmentID
}

func IsManager(ctx context.Context) bool {
	m, ok := MemberFromContext(ctx)
	if !ok {
		return false
	}
	return m.Role == "manager"
}
