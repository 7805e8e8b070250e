// Package pages はエクスポート済みのページ一式（HTMLと静的ファイル）を配信する。
//
// 画面の描画そのものは外部で行い、ここではファイルを探して返すだけにする。
// "/about" は about.html、about/index.html、about の順に探す。
package pages

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// notFoundPage は見つからなかった場合に返すページ。
const notFoundPage = "404.html"

// immutablePrefix 配下のファイルはビルドごとに名前が変わるため長期キャッシュしてよい。
const immutablePrefix = "_next/static/"

// Renderer はページ一式を配信する。
type Renderer struct {
	fsys   fs.FS
	logger *zap.Logger
}

// New は fsys をルートとする Renderer を生成する。
func New(fsys fs.FS, logger *zap.Logger) *Renderer {
	return &Renderer{fsys: fsys, logger: logger}
}

// NewDir はディレクトリをルートとする Renderer を生成する。
func NewDir(dir string, logger *zap.Logger) *Renderer {
	return New(os.DirFS(dir), logger)
}

// Handler はページを配信するGinハンドラを返す。GETとHEAD以外は404になる。
func (r *Renderer) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			r.notFound(c)
			return
		}

		name, ok := r.Resolve(c.Request.URL.Path)
		if !ok {
			r.notFound(c)
			return
		}
		r.serveFile(c, name)
	}
}

// Resolve はURLパスに対応するファイル名を返す。見つからなければ false。
func (r *Renderer) Resolve(urlPath string) (string, bool) {
	rel, ok := relPath(urlPath)
	if !ok {
		return "", false
	}
	if rel == "" {
		return r.firstFile("index.html")
	}
	return r.firstFile(rel+".html", path.Join(rel, "index.html"), rel)
}

// firstFile は候補のうち最初に存在する通常ファイルを返す。
func (r *Renderer) firstFile(candidates ...string) (string, bool) {
	for _, name := range candidates {
		info, err := fs.Stat(r.fsys, name)
		if err == nil && info.Mode().IsRegular() {
			return name, true
		}
	}
	return "", false
}

// serveFile はファイルを返す。Range や If-Modified-Since は http.ServeContent に任せる。
func (r *Renderer) serveFile(c *gin.Context, name string) {
	f, err := r.fsys.Open(name)
	if err != nil {
		r.notFound(c)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		r.notFound(c)
		return
	}

	content, ok := f.(io.ReadSeeker)
	if !ok {
		b, err := io.ReadAll(f)
		if err != nil {
			r.logger.Error("ファイルの読み込みに失敗", zap.String("file", name), zap.Error(err))
			c.Status(http.StatusInternalServerError)
			return
		}
		content = bytes.NewReader(b)
	}

	switch {
	case strings.HasPrefix(name, immutablePrefix):
		c.Header("Cache-Control", "public, max-age=31536000, immutable")
	case path.Ext(name) == ".html":
		c.Header("Cache-Control", "no-cache")
	}
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), content)
}

// notFound は404ページを返す。404.html が無ければ素のテキストを返す。
func (r *Renderer) notFound(c *gin.Context) {
	b, err := fs.ReadFile(r.fsys, notFoundPage)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("404ページの読み込みに失敗", zap.Error(err))
		}
		c.String(http.StatusNotFound, "404 page not found")
		return
	}
	c.Data(http.StatusNotFound, "text/html; charset=utf-8", b)
}

// relPath はURLパスを fs.FS 用の相対パスに変換する。
// ドットセグメントやバックスラッシュを含むパスはディレクトリ外を指し得るため拒否する。
func relPath(urlPath string) (string, bool) {
	rel := strings.Trim(urlPath, "/")
	if rel == "" {
		return "", true
	}
	if strings.IndexByte(rel, 0) != -1 || strings.Contains(rel, "\\") {
		return "", false
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", false
		}
	}
	if !fs.ValidPath(rel) {
		return "", false
	}
	return rel, true
}
