package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestRequestID はRequestIDミドルウェアを検証する。
func TestRequestID(t *testing.T) {
	t.Parallel()

	newRouter := func(got *string) *gin.Engine {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			*got = GetRequestID(c)
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("受信したX-Request-IDを引き継ぐこと", func(t *testing.T) {
		t.Parallel()

		var got string
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderRequestID, "req-abc")
		w := httptest.NewRecorder()
		newRouter(&got).ServeHTTP(w, req)

		assert.Equal(t, "req-abc", got)
		assert.Equal(t, "req-abc", w.Header().Get(HeaderRequestID))
	})

	t.Run("X-Request-IDが無ければUUIDを生成すること", func(t *testing.T) {
		t.Parallel()

		var got string
		w := httptest.NewRecorder()
		newRouter(&got).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		_, err := uuid.Parse(got)
		assert.NoError(t, err)
		assert.Equal(t, got, w.Header().Get(HeaderRequestID))
	})

	t.Run("長すぎるX-Request-IDは振り直すこと", func(t *testing.T) {
		t.Parallel()

		var got string
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", 500))
		newRouter(&got).ServeHTTP(httptest.NewRecorder(), req)

		_, err := uuid.Parse(got)
		assert.NoError(t, err)
	})

	t.Run("ミドルウェア未適用なら空文字列を返すこと", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		assert.Empty(t, GetRequestID(c))
	})
}
