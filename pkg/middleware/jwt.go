package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims は開発用バックエンドが発行するトークンのクレーム。
type TokenClaims struct {
	jwt.RegisteredClaims
	// UserID はユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Role は "admin" または "citizen"。
	Role string `json:"role"`
}

// tokenIssuer はトークンの発行者名。
const tokenIssuer = "cityportal-devbackend"

// tokenTTL はトークンの有効期間。
const tokenTTL = 24 * time.Hour

// GenerateToken はユーザー情報から署名済みトークンを生成する。
func GenerateToken(secret, userID, email, role string) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID,
		},
		UserID: userID,
		Email:  email,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseToken はトークン文字列を検証してクレームを返す。
func ParseToken(secret, tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("トークンが無効です")
	}
	return claims, nil
}

// TokenAuth はトークンを検証するGinミドルウェアを返す。
// Authorization: Bearer ヘッダーを優先し、無ければ cookieName のCookieを読む。
// 検証に成功した場合、コンテキストに "user_id", "email", "role" を設定する。
func TokenAuth(secret, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c, cookieName)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
			return
		}

		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireRole は指定ロール以外を403で拒否するGinミドルウェアを返す。
// TokenAuthの後に適用する。
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "This action is unauthorized."})
			return
		}
		c.Next()
	}
}

// extractToken はヘッダーまたはCookieからトークンを取り出す。
func extractToken(c *gin.Context, cookieName string) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	v, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return v
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
func GetUserID(c *gin.Context) string {
	return getString(c, "user_id")
}

// GetEmail はGinコンテキストからメールアドレスを取得する。
func GetEmail(c *gin.Context) string {
	return getString(c, "email")
}

// GetRole はGinコンテキストからロールを取得する。
func GetRole(c *gin.Context) string {
	return getString(c, "role")
}

func getString(c *gin.Context, key string) string {
	v, _ := c.Get(key)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
