package proxy

import (
	"net/http"

	"github.com/nao1215/cityportal/internal/backend"
)

// authMode はエンドポイントの認証要件。
type authMode int

const (
	// authNone はトークンを転送しない。
	authNone authMode = iota
	// authOptional はトークンがあれば転送する。
	authOptional
	// authRequired はトークンが無ければ上流を呼ばずに401を返す。
	authRequired
)

// String は認証要件の表示名を返す。
func (m authMode) String() string {
	switch m {
	case authOptional:
		return "optional"
	case authRequired:
		return "required"
	default:
		return "none"
	}
}

// bodyMode はリクエストボディの扱い。
type bodyMode int

const (
	// bodyNone はボディを転送しない。
	bodyNone bodyMode = iota
	// bodyJSON はJSONとして検証してから転送する。
	bodyJSON
	// bodyForm はmultipart/urlencodedなら無加工で、それ以外はJSONとして転送する。
	bodyForm
)

// endpoint は1つのブラウザ向けルートと上流呼び出しの対応。
type endpoint struct {
	// name はログとメトリクスで使う識別子。
	name string
	// method は上流に送るメソッド。空なら受信したメソッドをそのまま使う。
	method string
	// path はURLパラメータ id から上流パスを返す。
	path func(id string) string
	// query は転送を許可するクエリパラメータ。
	query []string
	// auth は認証要件。
	auth authMode
	// body はリクエストボディの扱い。
	body bodyMode
	// deletion は空ボディの2xxを削除成功として扱うなら true。
	deletion bool
	// failure は上流が詳細を返さなかった場合の利用者向けメッセージ。
	failure string
}

// announcementQuery はお知らせ一覧で転送するクエリ。
var announcementQuery = []string{"page", "per_page", "category", "search", "is_active"}

// publishedNewsQuery は公開ニュース一覧で転送するクエリ。
var publishedNewsQuery = []string{"page", "per_page", "category", "search"}

func staticPath(p string) func(string) string {
	return func(string) string { return p }
}

var (
	listAnnouncements = endpoint{
		name:    "announcements.list",
		path:    staticPath(backend.AnnouncementsPath),
		query:   announcementQuery,
		auth:    authOptional,
		failure: "Failed to fetch announcements",
	}
	createAnnouncement = endpoint{
		name:    "announcements.create",
		path:    staticPath(backend.AnnouncementsPath),
		auth:    authRequired,
		body:    bodyJSON,
		failure: "Failed to create announcement",
	}
	getAnnouncement = endpoint{
		name:    "announcements.get",
		path:    backend.AnnouncementPath,
		auth:    authOptional,
		failure: "Failed to fetch announcement",
	}
	updateAnnouncement = endpoint{
		name:    "announcements.update",
		path:    backend.AnnouncementPath,
		auth:    authRequired,
		body:    bodyJSON,
		failure: "Failed to update announcement",
	}
	deleteAnnouncement = endpoint{
		name:     "announcements.delete",
		path:     backend.AnnouncementPath,
		auth:     authRequired,
		deletion: true,
		failure:  "Failed to delete announcement",
	}
	getNews = endpoint{
		name:    "news.get",
		path:    backend.AdminNewsPath,
		auth:    authOptional,
		failure: "Failed to fetch news",
	}
	// updateNews はPATCHでもPOSTでも上流にはPOSTで送る。
	// バックエンドのmultipart更新はPOSTしか受け付けない。
	updateNews = endpoint{
		name:    "news.update",
		method:  http.MethodPost,
		path:    backend.AdminNewsPath,
		auth:    authRequired,
		body:    bodyForm,
		failure: "Failed to update news",
	}
	deleteNews = endpoint{
		name:     "news.delete",
		path:     backend.AdminNewsPath,
		auth:     authRequired,
		deletion: true,
		failure:  "Failed to delete news",
	}
	listPublishedNews = endpoint{
		name:    "news.published",
		path:    staticPath(backend.PublishedNewsPath),
		query:   publishedNewsQuery,
		auth:    authNone,
		failure: "Failed to fetch news",
	}
)
