package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"mentor/internal/model"
	"mentor/internal/pkg/ctxutil"
	"mentor/internal/pkg/jwt"
)

// ClientAddress 网络地址: X-Forwarded-For 的第一跳，否则为连接的远端主机
func ClientAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr := strings.TrimSpace(first); addr != "" {
			return addr
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// bearerToken 提取 Authorization: Bearer {token}
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// Identify 解析调用方身份并注入 context
// Token 缺失或无效时按匿名处理，不拒绝请求
func Identify(jwtUtil *jwt.JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := ClientAddress(c.Request)
		id := model.Anonymous(addr)

		if token, ok := bearerToken(c.Request); ok && jwtUtil != nil {
			claims, err := jwtUtil.ValidateToken(token)
			if err != nil {
				log.Ctx(c.Request.Context()).Debug().Err(err).Msg("ignoring invalid bearer token")
			} else {
				id = model.Registered(string(claims.UserID), addr)
			}
		}

		ctx := ctxutil.WithIdentity(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireAuth 要求注册用户，须挂在 Identify 之后
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := identityFrom(c); !ok || !id.IsRegistered() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{
				Code:    40101,
				Message: "Authentication required",
			})
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) (model.Identity, bool) {
	return ctxutil.GetIdentity(c.Request.Context())
}
