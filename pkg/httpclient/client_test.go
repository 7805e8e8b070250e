package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// RawQuery はクエリ文字列。
	RawQuery string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// newRecordingServer は受け取ったリクエストを記録してから handler に応答させるテストサーバーを生成する。
func newRecordingServer(t *testing.T, received *testRequest, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Method = r.Method
		received.Path = r.URL.Path
		received.RawQuery = r.URL.RawQuery
		received.Body, _ = io.ReadAll(r.Body)
		received.Headers = r.Header.Clone()
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	client := New("http://localhost:8000", 5*time.Second)
	require.NotNil(t, client)
	assert.Equal(t, "http://localhost:8000", client.BaseURL())
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
}

// TestURL はURL組み立てを検証する。
func TestURL(t *testing.T) {
	t.Parallel()

	client := New("http://backend", time.Second)
	assert.Equal(t, "http://backend/api/news/published", client.URL("/api/news/published", nil))
	assert.Equal(t, "http://backend/api/news/published?page=2&per_page=3",
		client.URL("/api/news/published", url.Values{"per_page": {"3"}, "page": {"2"}}))
}

// TestDo はDo関数を検証する。
func TestDo(t *testing.T) {
	t.Parallel()

	t.Run("メソッド・クエリ・ヘッダー・ボディを転送しレスポンスを全量返すこと", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"success":true}`))
		})

		client := New(ts.URL, time.Second)
		resp, err := client.Do(context.Background(), &Request{
			Method: http.MethodPatch,
			Path:   "/api/announcements/7",
			Query:  url.Values{"page": {"1"}},
			Header: http.Header{"Authorization": {"Bearer tkn"}},
			Body:   strings.NewReader(`{"title":"x"}`),
		})
		require.NoError(t, err)

		assert.Equal(t, http.MethodPatch, received.Method)
		assert.Equal(t, "/api/announcements/7", received.Path)
		assert.Equal(t, "page=1", received.RawQuery)
		assert.Equal(t, "Bearer tkn", received.Headers.Get("Authorization"))
		assert.Equal(t, `{"title":"x"}`, string(received.Body))

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.True(t, resp.OK())
		assert.Equal(t, `{"success":true}`, string(resp.Body))
	})

	t.Run("2xx以外のステータスでもエラーにしないこと", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("<html>Server Error</html>"))
		})

		resp, err := New(ts.URL, time.Second).Do(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
		require.NoError(t, err)
		assert.False(t, resp.OK())
		assert.Equal(t, "<html>Server Error</html>", string(resp.Body))
	})

	t.Run("リクエストIDを伝播すること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		ctx := WithRequestID(context.Background(), "req-42")
		_, err := New(ts.URL, time.Second).Do(ctx, &Request{Method: http.MethodDelete, Path: "/x"})
		require.NoError(t, err)
		assert.Equal(t, "req-42", received.Headers.Get("X-Request-ID"))
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := New(ts.URL, time.Second).Do(ctx, &Request{Method: http.MethodGet, Path: "/x"})
		assert.Error(t, err)
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		_, err := New("http://127.0.0.1:1", time.Second).Do(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
		assert.Error(t, err)
	})
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("Acceptヘッダーを付けてデシリアライズすること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"user":{"role":"admin"}}`))
		})

		var result struct {
			User struct {
				Role string `json:"role"`
			} `json:"user"`
		}
		err := New(ts.URL, time.Second).GetJSON(context.Background(), "/api/auth/me",
			http.Header{"Cookie": {"auth_token=abc"}}, &result)
		require.NoError(t, err)

		assert.Equal(t, "admin", result.User.Role)
		assert.Equal(t, "application/json", received.Headers.Get("Accept"))
		assert.Equal(t, "auth_token=abc", received.Headers.Get("Cookie"))
	})

	t.Run("2xx以外はErrUnexpectedStatusになること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
		})

		err := New(ts.URL, time.Second).GetJSON(context.Background(), "/api/auth/me", nil, &struct{}{})
		assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := newRecordingServer(t, &received, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{invalid json}`))
		})

		err := New(ts.URL, time.Second).GetJSON(context.Background(), "/api/test", nil, &struct{}{})
		assert.Error(t, err)
	})
}
