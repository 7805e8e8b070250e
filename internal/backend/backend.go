// Package backend は外部バックエンドAPIの契約（上流パスとロール取得）をまとめる。
//
// 上流パスはすべて "/api/..." から始まり、ベースURLは config.BackendConfig.URL の
// オリジンだけを使う。ハンドラごとにベースURLを組み立て直さない。
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nao1215/cityportal/pkg/httpclient"
)

// 上流パス。
const (
	// CurrentUserPath はログイン中ユーザーを返すエンドポイント。
	CurrentUserPath = "/api/auth/me"
	// AnnouncementsPath はお知らせ一覧・作成のエンドポイント。
	AnnouncementsPath = "/api/announcements"
	// PublishedNewsPath は公開済みニュース一覧のエンドポイント。
	PublishedNewsPath = "/api/news/published"
	// adminNewsPrefix は管理用ニュース個別操作のエンドポイントの接頭辞。
	adminNewsPrefix = "/api/admin/news/"
)

// AnnouncementPath はお知らせ個別操作の上流パスを返す。
func AnnouncementPath(id string) string {
	return AnnouncementsPath + "/" + url.PathEscape(id)
}

// AdminNewsPath はニュース個別操作の上流パスを返す。
func AdminNewsPath(id string) string {
	return adminNewsPrefix + url.PathEscape(id)
}

// Role はゲートから見たユーザーのロール。
type Role string

const (
	// RoleAdmin は管理者。
	RoleAdmin Role = "admin"
	// RoleCitizen は市民。
	RoleCitizen Role = "citizen"
	// RoleUnknown はロールが判別できないことを表す。
	RoleUnknown Role = "unknown"
)

// ErrUnknownRole はバックエンドが admin でも citizen でもないロールを返したことを表す。
var ErrUnknownRole = errors.New("不明なロールです")

// ParseRole は文字列をロールに変換する。admin/citizen 以外は RoleUnknown。
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleCitizen:
		return Role(s)
	default:
		return RoleUnknown
	}
}

// RoleClient はバックエンドからログイン中ユーザーのロールを取得する。
type RoleClient struct {
	client     *httpclient.Client
	cookieName string
}

// NewRoleClient は新しい RoleClient を生成する。
// トークンは cookieName のCookieとして上流に渡す。
func NewRoleClient(client *httpclient.Client, cookieName string) *RoleClient {
	return &RoleClient{client: client, cookieName: cookieName}
}

// currentUserResponse は /api/auth/me のレスポンスのうちゲートが読む部分。
type currentUserResponse struct {
	User *struct {
		Role string `json:"role"`
	} `json:"user"`
}

// CurrentRole はトークンの持ち主のロールを返す。
// 取得に失敗した場合や admin/citizen 以外の場合は RoleUnknown とエラーを返す。
// 結果はキャッシュしない。
func (r *RoleClient) CurrentRole(ctx context.Context, token string) (Role, error) {
	header := http.Header{}
	header.Set("Cookie", (&http.Cookie{Name: r.cookieName, Value: token}).String())

	var body currentUserResponse
	if err := r.client.GetJSON(ctx, CurrentUserPath, header, &body); err != nil {
		return RoleUnknown, fmt.Errorf("ロールの取得に失敗: %w", err)
	}
	if body.User == nil {
		return RoleUnknown, fmt.Errorf("%w: userが含まれていません", ErrUnknownRole)
	}

	role := ParseRole(body.User.Role)
	if role == RoleUnknown {
		return RoleUnknown, fmt.Errorf("%w: %q", ErrUnknownRole, body.User.Role)
	}
	return role, nil
}
