package devbackend

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/cityportal/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testJWTSecret はテスト用のJWT署名秘密鍵。
const testJWTSecret = "test-secret-key"

// testCookie はテスト用の認証Cookie名。
const testCookie = "auth_token"

// newTestServer はインメモリSQLiteを使うテスト用サーバーを生成する。
func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	s, err := newServer(context.Background(), db, testJWTSecret, testCookie, zap.NewNop())
	require.NoError(t, err)
	return s
}

// tokenFor は指定ロールのトークンを生成する。
func tokenFor(t *testing.T, role string) string {
	t.Helper()

	token, err := middleware.GenerateToken(testJWTSecret, "user-"+role, role+"@example.com", role)
	require.NoError(t, err)
	return token
}

// request はJSONボディ付きのリクエストを送る。token が空なら認証無し。
func request(s *Server, method, target, token string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got), "body=%s", w.Body.String())
	return got
}

// TestLoginAndMe はログインでCookieが設定され、そのCookieでユーザーを取得できることを検証する。
func TestLoginAndMe(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	w := request(s, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@city.example.com", "role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: cookie.Value})
	me := httptest.NewRecorder()
	s.Handler().ServeHTTP(me, req)

	require.Equal(t, http.StatusOK, me.Code)
	user, ok := decode(t, me)["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "admin", user["role"])
	assert.Equal(t, "admin@city.example.com", user["email"])
	assert.NotEmpty(t, user["id"])
}

// TestLoginValidation はログインの入力検証を検証する。
func TestLoginValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{name: "メールアドレス無し", body: map[string]string{"role": "admin"}, field: "email"},
		{name: "メールアドレス不正", body: map[string]string{"email": "not-an-email"}, field: "email"},
		{name: "不明なロール", body: map[string]string{"email": "a@example.com", "role": "mayor"}, field: "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := request(s, http.MethodPost, "/api/auth/login", "", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			errs, ok := decode(t, w)["errors"].(map[string]any)
			require.True(t, ok)
			assert.Contains(t, errs, tt.field)
		})
	}
}

// TestLoginDefaultsToCitizen はロール未指定のログインが市民になることを検証する。
func TestLoginDefaultsToCitizen(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	w := request(s, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "taro@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	user := decode(t, w)["user"].(map[string]any)
	assert.Equal(t, "citizen", user["role"])
}

// TestMeWithoutToken はトークン無しの /api/auth/me が401になることを検証する。
func TestMeWithoutToken(t *testing.T) {
	t.Parallel()

	w := request(newTestServer(t), http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthenticated.", decode(t, w)["message"])
}

// TestAnnouncementCRUD はお知らせの作成から削除までを検証する。
func TestAnnouncementCRUD(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	admin := tokenFor(t, "admin")

	w := request(s, http.MethodPost, "/api/announcements", admin, map[string]any{"title": "断水", "content": "本日断水します"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)["data"].(map[string]any)
	id := created["id"].(string)
	assert.Equal(t, "general", created["category"])
	assert.Equal(t, true, created["is_active"])

	w = request(s, http.MethodGet, "/api/announcements/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "断水", decode(t, w)["data"].(map[string]any)["title"])

	w = request(s, http.MethodPatch, "/api/announcements/"+id, admin, map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, false, updated["is_active"])
	assert.Equal(t, "断水", updated["title"], "指定しないフィールドは変わらない")

	w = request(s, http.MethodDelete, "/api/announcements/"+id, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = request(s, http.MethodGet, "/api/announcements/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = request(s, http.MethodDelete, "/api/announcements/"+id, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestAnnouncementAuthorization は更新系が管理者に限られることを検証する。
func TestAnnouncementAuthorization(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	body := map[string]any{"title": "t", "content": "c"}

	w := request(s, http.MethodPost, "/api/announcements", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(s, http.MethodPost, "/api/announcements", tokenFor(t, "citizen"), body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = request(s, http.MethodPost, "/api/announcements", "forged.token.value", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestAnnouncementValidation はお知らせ作成の入力検証を検証する。
func TestAnnouncementValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	w := request(s, http.MethodPost, "/api/announcements", tokenFor(t, "admin"), map[string]any{"content": "本文だけ"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	got := decode(t, w)
	assert.Equal(t, "The title field is required.", got["message"])
}

// TestListAnnouncements は一覧のページングと絞り込みを検証する。
func TestListAnnouncements(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	ctx := context.Background()
	for i, a := range []Announcement{
		{Title: "ゴミ収集日の変更", Content: "月曜に変更", Category: "general", IsActive: true},
		{Title: "断水のお知らせ", Content: "北区で断水", Category: "infrastructure", IsActive: true},
		{Title: "停電のお知らせ", Content: "南区で停電", Category: "infrastructure", IsActive: false},
	} {
		_, err := s.Store().CreateAnnouncement(ctx, a)
		require.NoError(t, err, "i=%d", i)
	}

	tests := []struct {
		name      string
		query     string
		wantTotal float64
		wantLen   int
	}{
		{name: "全件", query: "", wantTotal: 3, wantLen: 3},
		{name: "ページング", query: "?per_page=2&page=2", wantTotal: 3, wantLen: 1},
		{name: "カテゴリ", query: "?category=infrastructure", wantTotal: 2, wantLen: 2},
		{name: "掲載中のみ", query: "?is_active=1", wantTotal: 2, wantLen: 2},
		{name: "検索", query: "?search=" + url.QueryEscape("断水"), wantTotal: 1, wantLen: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := request(s, http.MethodGet, "/api/announcements"+tt.query, "", nil)
			require.Equal(t, http.StatusOK, w.Code)
			page := decode(t, w)["data"].(map[string]any)
			assert.InDelta(t, tt.wantTotal, page["total"], 0)
			assert.Len(t, page["data"], tt.wantLen)
		})
	}
}

// TestNewsLifecycle はニュースの作成、公開、取得、削除を検証する。
func TestNewsLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	admin := tokenFor(t, "admin")

	w := request(s, http.MethodPost, "/api/admin/news/n1", admin, map[string]any{"title": "下書き", "content": "本文"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StatusDraft, decode(t, w)["data"].(map[string]any)["status"])

	w = request(s, http.MethodGet, "/api/news/published", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0, decode(t, w)["data"].(map[string]any)["total"], 0, "下書きは公開一覧に出ない")

	w = request(s, http.MethodPost, "/api/admin/news/n1", admin, map[string]any{"status": StatusPublished})
	require.Equal(t, http.StatusOK, w.Code)
	saved := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "下書き", saved["title"])
	assert.NotEmpty(t, saved["published_at"])

	w = request(s, http.MethodGet, "/api/news/published", "", nil)
	assert.InDelta(t, 1, decode(t, w)["data"].(map[string]any)["total"], 0)

	w = request(s, http.MethodGet, "/api/admin/news/n1", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = request(s, http.MethodDelete, "/api/admin/news/n1", admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = request(s, http.MethodGet, "/api/admin/news/n1", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestNewsMultipart はmultipartでのニュース更新で画像名が記録されることを検証する。
func TestNewsMultipart(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "夏祭り"))
	require.NoError(t, mw.WriteField("status", StatusPublished))
	fw, err := mw.CreateFormFile("image", "festival.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/news/n2", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "admin"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "夏祭り", saved["title"])
	assert.Equal(t, "festival.png", saved["image_name"])
	assert.Equal(t, StatusPublished, saved["status"])
}

// TestNewsValidation はニュース保存の入力検証を検証する。
func TestNewsValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	admin := tokenFor(t, "admin")

	w := request(s, http.MethodPost, "/api/admin/news/n3", admin, map[string]any{"content": "タイトル無し"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = request(s, http.MethodPost, "/api/admin/news/n3", admin, map[string]any{"title": "t", "status": "archived"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode(t, w)["errors"], "status")
}

// TestAdminNewsRequiresAdmin は管理用ニュースAPIが管理者に限られることを検証する。
func TestAdminNewsRequiresAdmin(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	w := request(s, http.MethodGet, "/api/admin/news/n1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(s, http.MethodGet, "/api/admin/news/n1", tokenFor(t, "citizen"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// TestSeed はサンプルデータが一度だけ投入されることを検証する。
func TestSeed(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.Store().Seed(ctx))
	require.NoError(t, s.Store().Seed(ctx))

	_, total, err := s.Store().ListAnnouncements(ctx, ListFilter{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	news, total, err := s.Store().ListPublishedNews(ctx, ListFilter{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, n := range news {
		assert.Equal(t, StatusPublished, n.Status)
		assert.False(t, strings.Contains(n.Title, "下書き"))
	}
}

// TestHealth はヘルスチェックを検証する。
func TestHealth(t *testing.T) {
	t.Parallel()

	w := request(newTestServer(t), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
