package devbackend

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/cityportal/internal/config"
	"github.com/nao1215/cityportal/pkg/httpserver"
	"github.com/nao1215/cityportal/pkg/middleware"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// roleAdmin は管理者ロール。
const roleAdmin = "admin"

// Server は開発用バックエンドのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はデータアクセス。
	store *Store
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はトークン署名用の秘密鍵。
	jwtSecret string
	// cookieName は認証Cookie名。
	cookieName string
	// logger は構造化ロガー。
	logger *zap.Logger
}

// NewServer は設定から開発用バックエンドを生成する。
// SQLiteデータベースを開き、マイグレーションを適用する。
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DevBackend.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	s, err := newServer(ctx, db, cfg.DevBackend.JWTSecret, cfg.Auth.CookieName, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.port = cfg.DevBackend.Port
	return s, nil
}

// newServer は開いたDBを使ってサーバーを組み立てる。
func newServer(ctx context.Context, db *sql.DB, jwtSecret, cookieName string, logger *zap.Logger) (*Server, error) {
	store, err := NewStore(ctx, db, logger)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))

	s := &Server{
		router:     router,
		store:      store,
		db:         db,
		jwtSecret:  jwtSecret,
		cookieName: cookieName,
		logger:     logger,
	}
	s.setupRoutes()
	return s, nil
}

// Store はデータアクセスを返す。
func (s *Server) Store() *Store {
	return s.store
}

// Handler はルーターを http.Handler として返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// Run はHTTPサーバーを起動し、ctx がキャンセルされたら停止する。
func (s *Server) Run(ctx context.Context) error {
	return httpserver.Run(ctx, s.port, s.router, s.logger)
}

// Serve は ln でサーバーを起動する。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return httpserver.Serve(ctx, ln, s.router, s.logger)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	auth := middleware.TokenAuth(s.jwtSecret, s.cookieName)
	admin := middleware.RequireRole(roleAdmin)

	api := s.router.Group("/api")
	{
		// 認証
		api.POST("/auth/login", s.handleLogin())
		api.POST("/auth/logout", s.handleLogout())
		api.GET("/auth/me", auth, s.handleMe())

		// お知らせ
		api.GET("/announcements", s.handleListAnnouncements())
		api.GET("/announcements/:id", s.handleGetAnnouncement())
		api.POST("/announcements", auth, admin, s.handleCreateAnnouncement())
		api.PATCH("/announcements/:id", auth, admin, s.handleUpdateAnnouncement())
		api.DELETE("/announcements/:id", auth, admin, s.handleDeleteAnnouncement())

		// ニュース
		api.GET("/news/published", s.handleListPublishedNews())
		adminNews := api.Group("/admin/news", auth, admin)
		{
			adminNews.GET("/:id", s.handleGetNews())
			adminNews.POST("/:id", s.handleSaveNews())
			adminNews.DELETE("/:id", s.handleDeleteNews())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "devbackend"})
	})
}
