package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/utils"
)

// 上下文键
const (
	ContextUserID    = "userID"
	ContextUsername  = "username"
	ContextAvatarURL = "avatarURL"
)

// IdentitySyncer 令牌校验通过后同步本地用户
type IdentitySyncer interface {
	SyncIdentity(ctx context.Context, claims *utils.IdentityClaims) error
}

// AuthMiddleware JWT认证中间件，身份由外部认证服务签发
type AuthMiddleware struct {
	jwt    *utils.JWTManager
	syncer IdentitySyncer
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(jwt *utils.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// WithIdentitySync 设置用户同步
func (m *AuthMiddleware) WithIdentitySync(syncer IdentitySyncer) *AuthMiddleware {
	m.syncer = syncer
	return m
}

// OptionalAuth 可选认证（游客可以直接游玩），令牌无效时按游客处理
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if claims, err := m.jwt.ValidateToken(token); err == nil {
				if err := m.sync(c, claims); err != nil {
					abortWithError(c, apperrors.FromError(err))
					return
				}
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

// RequireAuth 需要认证的中间件
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortWithError(c, apperrors.New(apperrors.ErrAuthentication, "缺少认证令牌"))
			return
		}
		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			code := apperrors.ErrTokenInvalid
			if errors.Is(err, utils.ErrExpiredToken) {
				code = apperrors.ErrTokenExpired
			}
			abortWithError(c, apperrors.New(code))
			return
		}
		if err := m.sync(c, claims); err != nil {
			abortWithError(c, apperrors.FromError(err))
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

func (m *AuthMiddleware) sync(c *gin.Context, claims *utils.IdentityClaims) error {
	if m.syncer == nil {
		return nil
	}
	return m.syncer.SyncIdentity(c.Request.Context(), claims)
}

func setIdentity(c *gin.Context, claims *utils.IdentityClaims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUsername, claims.Username)
	c.Set(ContextAvatarURL, claims.AvatarURL)
}

func abortWithError(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus(), apperrors.NewErrorResponse(err.Public(), GetRequestID(c)))
}

// extractToken 从请求中提取令牌
func extractToken(c *gin.Context) string {
	// 1. Authorization: Bearer <token>
	if bearer := c.GetHeader("Authorization"); bearer != "" {
		parts := strings.SplitN(bearer, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// 2. X-Access-Token
	if token := c.GetHeader("X-Access-Token"); token != "" {
		return token
	}

	// 3. Query参数，浏览器建立 WebSocket 时无法设置请求头
	return c.Query("token")
}

// GetUserID 从上下文获取登录用户ID
func GetUserID(c *gin.Context) (uint, bool) {
	if v, exists := c.Get(ContextUserID); exists {
		if id, ok := v.(uint); ok && id > 0 {
			return id, true
		}
	}
	return 0, false
}

// GetUserIDPtr 登录用户ID，游客返回 nil
func GetUserIDPtr(c *gin.Context) *uint {
	if id, ok := GetUserID(c); ok {
		return &id
	}
	return nil
}

// GetUsername 从上下文获取用户名
func GetUsername(c *gin.Context) (string, bool) {
	if v, exists := c.Get(ContextUsername); exists {
		if name, ok := v.(string); ok {
			return name, true
		}
	}
	return "", false
}
