package authz

import (
	"context"
	"net/http"

	"github.com/stanstork/invitation-api/internal/models"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	usernameKey contextKey = "username"
	roleKey     contextKey = "role"
)

// WithPrincipal stores the resolved caller identity on the context.
func WithPrincipal(ctx context.Context, userID, username string, role models.Role) context.Context {
	if userID != "" {
		ctx = context.WithValue(ctx, userIDKey, userID)
	}
	if username != "" {
		ctx = context.WithValue(ctx, usernameKey, username)
	}
	if !models.IsValidRole(role) {
		role = models.RoleMember
	}
	ctx = context.WithValue(ctx, roleKey, role)
	return ctx
}

func UserIDFromRequest(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value(userIDKey).(string)
	if !ok || uid == "" {
		return "", false
	}
	return uid, true
}

func UsernameFromRequest(r *http.Request) (string, bool) {
	name, ok := r.Context().Value(usernameKey).(string)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

func RoleFromRequest(r *http.Request) (models.Role, bool) {
	role, ok := r.Context().Value(roleKey).(models.Role)
	if !ok || !models.IsValidRole(role) {
		return "", false
	}
	return role, true
}
