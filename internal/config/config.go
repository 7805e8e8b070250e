// Package config はポータルと開発用バックエンドの設定を読み込む。
//
// 設定は以下の順に読み込まれ、後のものが前のものを上書きする。
//  1. デフォルト値
//  2. YAML設定ファイル（--config で指定、未指定なら ./config.yaml, ./configs/config.yaml）
//  3. 環境変数（PORTAL_ プレフィックス、"." は "_" に置換）
//
// バックエンドのベースURLはこのパッケージの BackendConfig.URL だけが解決する。
// 末尾の "/" と "/api" は読み込み時に取り除き、上流パスは常に "/api/..." から始める。
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RoleFallback はロール取得に失敗した際のアクセスゲートの振る舞い。
type RoleFallback string

const (
	// FallbackCitizen は市民ダッシュボードへリダイレクトする（従来の振る舞い）。
	FallbackCitizen RoleFallback = "citizen"
	// FallbackAuthPage はログイン/登録ページをそのまま表示し、再ログインを促す。
	FallbackAuthPage RoleFallback = "auth_page"
)

// Config は設定全体。
type Config struct {
	// Server はポータルのHTTPサーバー設定。
	Server ServerConfig `mapstructure:"server"`
	// Site はサイト固有の設定。
	Site SiteConfig `mapstructure:"site"`
	// Backend は外部バックエンドAPIへの接続設定。
	Backend BackendConfig `mapstructure:"backend"`
	// Auth は認証Cookieの設定。
	Auth AuthConfig `mapstructure:"auth"`
	// Gate はアクセスゲートの設定。
	Gate GateConfig `mapstructure:"gate"`
	// CORS はクロスオリジン設定。
	CORS CORSConfig `mapstructure:"cors"`
	// Pages はページバンドルの配信設定。
	Pages PagesConfig `mapstructure:"pages"`
	// Log はログ出力の設定。
	Log LogConfig `mapstructure:"log"`
	// Metrics はメトリクス公開の設定。
	Metrics MetricsConfig `mapstructure:"metrics"`
	// DevBackend は開発用バックエンドの設定。
	DevBackend DevBackendConfig `mapstructure:"devbackend"`
}

// ServerConfig はポータルのHTTPサーバー設定。
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// SiteConfig はサイト固有の設定。2つの市サイトはこの名前で区別する。
type SiteConfig struct {
	Name string `mapstructure:"name"`
}

// BackendConfig は外部バックエンドAPIへの接続設定。
type BackendConfig struct {
	// URL はバックエンドのオリジン（例: "http://localhost:8000"）。
	URL string `mapstructure:"url"`
	// Timeout は上流呼び出し1回あたりのタイムアウト。
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig は認証Cookieの設定。
type AuthConfig struct {
	CookieName string `mapstructure:"cookie_name"`
}

// GateConfig はアクセスゲートの設定。
type GateConfig struct {
	RoleFallback RoleFallback `mapstructure:"role_fallback"`
}

// CORSConfig はクロスオリジン設定。
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// PagesConfig はページバンドルの配信設定。
type PagesConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig はログ出力の設定。
type LogConfig struct {
	// Level は debug, info, warn, error のいずれか。
	Level string `mapstructure:"level"`
	// Format は json または console。
	Format string `mapstructure:"format"`
}

// MetricsConfig はメトリクス公開の設定。
type MetricsConfig struct {
	// Port が空ならポータルと同じポートの /metrics で公開する。
	// 指定すると /metrics はそのポートだけで公開し、ポータル側ではゲートの対象になる。
	Port string `mapstructure:"port"`
}

// DevBackendConfig は開発用バックエンドの設定。
type DevBackendConfig struct {
	Port      string `mapstructure:"port"`
	DBPath    string `mapstructure:"db_path"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// Load は設定ファイルと環境変数から設定を読み込む。
// cfgFile が空の場合は標準の場所を探し、見つからなければデフォルト値を使う。
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isFileNotFoundError(err) {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	}

	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindAliases(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("設定のデコードに失敗: %w", err)
	}
	cfg.Backend.URL = NormalizeBackendURL(cfg.Backend.URL)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("site.name", "city-portal")

	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.timeout", "30s")

	v.SetDefault("auth.cookie_name", "auth_token")
	v.SetDefault("gate.role_fallback", string(FallbackCitizen))
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("pages.dir", "./public")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.port", "")

	v.SetDefault("devbackend.port", "8000")
	v.SetDefault("devbackend.db_path", "devbackend.db")
	v.SetDefault("devbackend.jwt_secret", "dev-secret-key")
}

// bindAliases は既存のデプロイで使われている環境変数名を設定キーに結び付ける。
func bindAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"server.port":           {"PORTAL_SERVER_PORT", "PORT"},
		"backend.url":           {"PORTAL_BACKEND_URL", "NEXT_PUBLIC_API_URL"},
		"devbackend.jwt_secret": {"PORTAL_DEVBACKEND_JWT_SECRET", "JWT_SECRET"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("環境変数のバインドに失敗: key=%s: %w", key, err)
		}
	}
	return nil
}

// NormalizeBackendURL は末尾の "/" と "/api" を取り除いたオリジンを返す。
func NormalizeBackendURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	u = strings.TrimSuffix(u, "/api")
	return strings.TrimRight(u, "/")
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.url が不正です: %q", c.Backend.URL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout は正の値である必要があります: %s", c.Backend.Timeout)
	}
	if c.Auth.CookieName == "" {
		return errors.New("auth.cookie_name が空です")
	}
	if c.Metrics.Port != "" && c.Metrics.Port == c.Server.Port {
		return fmt.Errorf("metrics.port は server.port と別のポートである必要があります: %s", c.Metrics.Port)
	}
	switch c.Gate.RoleFallback {
	case FallbackCitizen, FallbackAuthPage:
	default:
		return fmt.Errorf("gate.role_fallback が不正です: %q", c.Gate.RoleFallback)
	}
	return nil
}

// isFileNotFoundError は明示指定された設定ファイルが存在しない場合に true を返す。
func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}
