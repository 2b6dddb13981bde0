package auth

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-kratos/kratos/v2/errors"
)

// 定义 context key
type contextKey string

const (
	// UserIDKey 用户ID的context key
	UserIDKey contextKey = "user_id"
	// UserRoleKey 用户角色的context key
	UserRoleKey contextKey = "user_role"
)

// 鉴权由网关完成,身份信息通过请求头透传
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// Role 用户角色
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// GetUserID 从context中获取用户ID
func GetUserID(ctx context.Context) (uint64, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint64)
	return userID, ok
}

// GetRole 从context中获取用户角色
func GetRole(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(UserRoleKey).(Role)
	return role, ok
}

// IsAdmin 判断当前用户是否为管理员
func IsAdmin(ctx context.Context) bool {
	role, ok := GetRole(ctx)
	return ok && role == RoleAdmin
}

// RequireUser 获取当前用户ID,未认证时返回 Unauthorized
func RequireUser(ctx context.Context) (uint64, error) {
	userID, ok := GetUserID(ctx)
	if !ok || userID == 0 {
		return 0, errors.Unauthorized("UNAUTHORIZED", "authentication required")
	}
	return userID, nil
}

// HTTPFilter 从网关透传的请求头解析身份信息写入 context
func HTTPFilter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		if raw := req.Header.Get(HeaderUserID); raw != "" {
			if userID, err := strconv.ParseUint(raw, 10, 64); err == nil {
				ctx = context.WithValue(ctx, UserIDKey, userID)
			}
		}
		if raw := req.Header.Get(HeaderUserRole); raw != "" {
			ctx = context.WithValue(ctx, UserRoleKey, Role(raw))
		}
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}
