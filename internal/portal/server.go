package portal

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/cityportal/internal/backend"
	"github.com/nao1215/cityportal/internal/config"
	"github.com/nao1215/cityportal/internal/gate"
	"github.com/nao1215/cityportal/internal/metrics"
	"github.com/nao1215/cityportal/internal/pages"
	"github.com/nao1215/cityportal/internal/proxy"
	"github.com/nao1215/cityportal/pkg/envelope"
	"github.com/nao1215/cityportal/pkg/httpclient"
	"github.com/nao1215/cityportal/pkg/httpserver"
	"github.com/nao1215/cityportal/pkg/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Server はポータルのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// metricsPort はメトリクス専用のリッスンポート。空ならポータルと同居する。
	metricsPort string
	// siteName はヘルスチェックで返すサイト名。
	siteName string
	// logger は構造化ロガー。
	logger *zap.Logger
	// metrics はPrometheusメトリクス。
	metrics *metrics.Metrics
	// gate はアクセスゲート。
	gate *gate.Gate
	// proxy はAPIプロキシハンドラ。
	proxy *proxy.Handler
	// pages はページ配信。
	pages *pages.Renderer
}

// NewServer は設定からポータルサーバーを生成する。
// ロール取得とプロキシは同じバックエンドクライアントを共有する。
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	client := httpclient.New(cfg.Backend.URL, cfg.Backend.Timeout)
	m := metrics.New()

	router := gin.New()
	// 末尾スラッシュのリダイレクトはゲートより前に走り、/api/ 配下にHTMLを返してしまう。
	router.RedirectTrailingSlash = false
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(m.Middleware())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	s := &Server{
		router:      router,
		port:        cfg.Server.Port,
		metricsPort: cfg.Metrics.Port,
		siteName:    cfg.Site.Name,
		logger:      logger,
		metrics:     m,
		gate: gate.New(
			backend.NewRoleClient(client, cfg.Auth.CookieName),
			cfg.Auth.CookieName,
			cfg.Gate.RoleFallback,
			logger,
			m,
		),
		proxy: proxy.New(client, cfg.Auth.CookieName, logger, m),
		pages: pages.NewDir(cfg.Pages.Dir, logger),
	}
	s.setupRoutes()

	return s
}

// Handler はルーターを http.Handler として返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes() {
	// ヘルスチェックとメトリクス（ゲート対象外）
	s.router.GET("/health", s.handleHealth())
	if s.metricsPort == "" {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	// APIプロキシ
	s.proxy.Register(s.router, s.gate.Middleware())

	// それ以外はページ
	s.router.NoRoute(s.gate.Middleware(), s.handleNoRoute())
}

// handleHealth はヘルスチェックのハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.siteName})
	}
}

// handleNoRoute は登録されていないパスのハンドラを返す。
// /api/ 配下は常にJSONで404を返し、それ以外はページを探す。
func (s *Server) handleNoRoute() gin.HandlerFunc {
	pageHandler := s.pages.Handler()
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, envelope.Failure("Not found"))
			return
		}
		pageHandler(c)
	}
}

// MetricsHandler はメトリクス専用ポートで公開するハンドラを返す。
func (s *Server) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// Run はHTTPサーバーを起動し、ctx がキャンセルされたらグレースフルシャットダウンする。
// metrics.port が指定されていればメトリクス用サーバーも並行して起動する。
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("ポータルを起動します", zap.String("site", s.siteName), zap.String("port", s.port))
	if s.metricsPort == "" {
		return httpserver.Run(ctx, s.port, s.router, s.logger)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(ctx, s.port, s.router, s.logger)
	})
	g.Go(func() error {
		s.logger.Info("メトリクスを別ポートで公開します", zap.String("port", s.metricsPort))
		return httpserver.Run(ctx, s.metricsPort, s.MetricsHandler(), s.logger)
	})
	return g.Wait()
}

// Serve は ln でサーバーを起動する。テストでは空きポートのリスナーを渡す。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return httpserver.Serve(ctx, ln, s.router, s.logger)
}
