package devbackend

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/cityportal/pkg/middleware"
)

// tokenMaxAge は認証Cookieの有効秒数。トークンの有効期間と揃える。
const tokenMaxAge = 24 * 60 * 60

// loginRequest はログインリクエスト。パスワードは扱わない。
type loginRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"omitempty,oneof=admin citizen"`
}

// handleLogin はメールアドレスとロールからトークンを発行するハンドラを返す。
// トークンはHTTP-onlyのCookieにも設定する。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, bindingErrors(err))
			return
		}
		if req.Role == "" {
			req.Role = "citizen"
		}

		user, err := s.store.UpsertUser(c.Request.Context(), req.Email, req.Role)
		if err != nil {
			s.respondInternal(c, "ユーザーの保存に失敗", err)
			return
		}

		token, err := middleware.GenerateToken(s.jwtSecret, user.ID, user.Email, user.Role)
		if err != nil {
			s.respondInternal(c, "トークンの生成に失敗", err)
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(s.cookieName, token, tokenMaxAge, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "user": user})
	}
}

// handleLogout は認証Cookieを削除するハンドラを返す。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(s.cookieName, "", -1, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
	}
}

// handleMe はログイン中ユーザーを返すハンドラを返す。
func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": User{
			ID:    middleware.GetUserID(c),
			Email: middleware.GetEmail(c),
			Role:  middleware.GetRole(c),
		}})
	}
}
