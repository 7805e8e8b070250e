package gate

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/cityportal/internal/backend"
	"github.com/nao1215/cityportal/internal/config"
	"github.com/nao1215/cityportal/internal/metrics"
	"github.com/nao1215/cityportal/pkg/middleware"
	"go.uber.org/zap"
)

// RoleResolver はトークンの持ち主のロールを返す。
type RoleResolver interface {
	CurrentRole(ctx context.Context, token string) (backend.Role, error)
}

// Outcome はゲートの判定結果の種類。メトリクスのラベルにもなる。
type Outcome string

const (
	// OutcomeAllowAPI は /api/ 配下を通した。
	OutcomeAllowAPI Outcome = "allow_api"
	// OutcomeAllowAsset は静的ファイルを通した。
	OutcomeAllowAsset Outcome = "allow_asset"
	// OutcomeAllowPublic は公開ページを通した。
	OutcomeAllowPublic Outcome = "allow_public"
	// OutcomeAllowProtected はトークン付きの保護ページを通した。
	OutcomeAllowProtected Outcome = "allow_protected"
	// OutcomeAllowAuthPage はロール不明のためログイン/登録ページを表示させた。
	OutcomeAllowAuthPage Outcome = "allow_auth_page"
	// OutcomeRedirectLogin はログインページへリダイレクトした。
	OutcomeRedirectLogin Outcome = "redirect_login"
	// OutcomeRedirectAdmin は管理者ダッシュボードへリダイレクトした。
	OutcomeRedirectAdmin Outcome = "redirect_admin"
	// OutcomeRedirectCitizen は市民ダッシュボードへリダイレクトした。
	OutcomeRedirectCitizen Outcome = "redirect_citizen"
)

// Decision はゲートの判定。
type Decision struct {
	// Outcome は判定結果。
	Outcome Outcome
	// Location はリダイレクト先。通す場合は空。
	Location string
}

// Redirect はリダイレクトする判定なら true を返す。
func (d Decision) Redirect() bool {
	return d.Location != ""
}

// Gate はアクセスゲート。
type Gate struct {
	resolver   RoleResolver
	cookieName string
	fallback   config.RoleFallback
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New は新しいアクセスゲートを生成する。metrics は nil でもよい。
func New(resolver RoleResolver, cookieName string, fallback config.RoleFallback, logger *zap.Logger, m *metrics.Metrics) *Gate {
	return &Gate{
		resolver:   resolver,
		cookieName: cookieName,
		fallback:   fallback,
		logger:     logger,
		metrics:    m,
	}
}

// Decide はパスとトークンから判定を下す。token が空ならCookie無しとして扱う。
// ロール取得の失敗はエラーとして返さず、フォールバックの判定に変換する。
func (g *Gate) Decide(ctx context.Context, path, token string) Decision {
	switch Classify(path) {
	case ClassAPI:
		return Decision{Outcome: OutcomeAllowAPI}
	case ClassAsset:
		return Decision{Outcome: OutcomeAllowAsset}
	case ClassPublic:
		if token != "" && isAuthPage(path) {
			return g.decideAuthPage(ctx, path, token)
		}
		return Decision{Outcome: OutcomeAllowPublic}
	}

	if token == "" {
		return Decision{Outcome: OutcomeRedirectLogin, Location: LoginRedirectURL(path)}
	}
	return Decision{Outcome: OutcomeAllowProtected}
}

// decideAuthPage はログイン済みユーザーがログイン/登録ページに来た場合の判定。
func (g *Gate) decideAuthPage(ctx context.Context, path, token string) Decision {
	role, err := g.resolver.CurrentRole(ctx, token)
	switch {
	case err == nil && role == backend.RoleAdmin:
		return Decision{Outcome: OutcomeRedirectAdmin, Location: AdminDashboardPath}
	case err == nil && role == backend.RoleCitizen:
		return Decision{Outcome: OutcomeRedirectCitizen, Location: CitizenDashboardPath}
	}

	g.logger.Warn("ロールを判別できないためフォールバックします",
		zap.String("path", path),
		zap.String("fallback", string(g.fallback)),
		zap.Error(err),
	)
	if g.fallback == config.FallbackAuthPage {
		return Decision{Outcome: OutcomeAllowAuthPage}
	}
	return Decision{Outcome: OutcomeRedirectCitizen, Location: CitizenDashboardPath}
}

// Middleware はゲートをGinミドルウェアとして返す。
// リダイレクトは307で返し、Cookieは変更しない。
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(g.cookieName)
		d := g.Decide(c.Request.Context(), c.Request.URL.Path, token)
		g.metrics.ObserveGate(string(d.Outcome))

		g.logger.Debug("gate",
			zap.String("path", c.Request.URL.Path),
			zap.Bool("has_token", token != ""),
			zap.String("outcome", string(d.Outcome)),
			zap.String("request_id", middleware.GetRequestID(c)),
		)

		if d.Redirect() {
			c.Redirect(http.StatusTemporaryRedirect, d.Location)
			c.Abort()
			return
		}
		c.Next()
	}
}

// LoginRedirectURL はログイン後に path へ戻るためのログインURLを返す。
func LoginRedirectURL(path string) string {
	return LoginPath + "?" + url.Values{"redirect": {path}}.Encode()
}
