package gate

import (
	"regexp"
	"strings"
)

// Class はパスの分類。
type Class int

const (
	// ClassProtected は認証Cookieが必要なパス。
	ClassProtected Class = iota
	// ClassPublic は誰でも閲覧できるページ。
	ClassPublic
	// ClassAPI は /api/ 配下。認証は各ハンドラが行う。
	ClassAPI
	// ClassAsset は静的ファイルとPWA関連ファイル。
	ClassAsset
)

// String は分類名を返す。
func (c Class) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassAPI:
		return "api"
	case ClassAsset:
		return "asset"
	default:
		return "protected"
	}
}

const (
	// LoginPath はログインページ。
	LoginPath = "/login"
	// RegisterPath は登録ページ。
	RegisterPath = "/register"
	// AdminDashboardPath は管理者ダッシュボードの入口。
	AdminDashboardPath = "/dashboard/admin/news"
	// CitizenDashboardPath は市民ダッシュボードの入口。
	CitizenDashboardPath = "/dashboard/citizen"
)

// publicPaths は完全一致で判定する公開ページ。
var publicPaths = map[string]struct{}{
	"/":              {},
	LoginPath:        {},
	RegisterPath:     {},
	"/announcements": {},
	"/news":          {},
	"/services":      {},
	"/about":         {},
	"/contact":       {},
	"/cookies":       {},
	"/terms":         {},
	"/privacy":       {},
}

// assetExt は拡張子で判定する静的ファイル。
var assetExt = regexp.MustCompile(`\.(svg|png|jpg|jpeg|gif|webp|ico|json|js)$`)

// Classify はパスを分類する。認証判定より前に必ず呼ぶ。
func Classify(path string) Class {
	if strings.HasPrefix(path, "/api/") {
		return ClassAPI
	}
	if isAsset(path) {
		return ClassAsset
	}
	if _, ok := publicPaths[path]; ok {
		return ClassPublic
	}
	return ClassProtected
}

// isAsset はビルド成果物・静的ファイル・PWAファイルなら true を返す。
func isAsset(path string) bool {
	switch {
	case path == "/manifest.json", path == "/sw.js":
		return true
	case strings.HasPrefix(path, "/workbox-"), strings.HasPrefix(path, "/swe-worker-"):
		return true
	case strings.HasPrefix(path, "/_next"), strings.HasPrefix(path, "/static"):
		return true
	}
	return assetExt.MatchString(path)
}

// isAuthPage はログインまたは登録ページなら true を返す。
func isAuthPage(path string) bool {
	return path == LoginPath || path == RegisterPath
}
