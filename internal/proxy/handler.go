package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/cityportal/internal/metrics"
	"github.com/nao1215/cityportal/pkg/envelope"
	"github.com/nao1215/cityportal/pkg/httpclient"
	"github.com/nao1215/cityportal/pkg/middleware"
	"go.uber.org/zap"
)

// maxRequestBytes はブラウザから受け取るリクエストボディの上限。画像付きのニュース更新を想定する。
const maxRequestBytes = 20 << 20

// msgNotAuthenticated はトークンが無い場合のメッセージ。
const msgNotAuthenticated = "Not authenticated. Please log in again."

// msgMethodNotAllowed は読み取り専用ルートへの更新系リクエストに返す文言。
const msgMethodNotAllowed = "Method not allowed"

// errInvalidRequestBody はブラウザから受け取ったボディがJSONとして不正であることを表す。
var errInvalidRequestBody = errors.New("invalid JSON request body")

// 上流呼び出しの結果。メトリクスのラベルになる。
const (
	outcomeOK              = "ok"
	outcomeUnauthenticated = "unauthenticated"
	outcomeBadRequest      = "bad_request"
	outcomeNetworkError    = "network_error"
	outcomeEmptyBody       = "empty_body"
	outcomeInvalidJSON     = "invalid_json"
	outcomeUpstreamError   = "upstream_error"
)

// Upstream は上流バックエンドへの送信を抽象化する。*httpclient.Client が実装する。
type Upstream interface {
	Do(ctx context.Context, r *httpclient.Request) (*httpclient.Response, error)
}

// Handler はAPIプロキシハンドラの集合。
type Handler struct {
	upstream   Upstream
	cookieName string
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New は新しいプロキシハンドラを生成する。metrics は nil でもよい。
func New(upstream Upstream, cookieName string, logger *zap.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		upstream:   upstream,
		cookieName: cookieName,
		logger:     logger,
		metrics:    m,
	}
}

// route はブラウザ向けルートとエンドポイントの対応。
type route struct {
	method string
	path   string
	ep     endpoint
}

// apiPrefix はプロキシルートの接頭辞。
const apiPrefix = "/api"

// publishedNewsPath は公開ニュース一覧のパス。GETのみ受け付ける。
const publishedNewsPath = "/news/published"

// routes はプロキシが公開するルート。パスは apiPrefix からの相対。
var routes = []route{
	{method: http.MethodGet, path: "/announcements", ep: listAnnouncements},
	{method: http.MethodPost, path: "/announcements", ep: createAnnouncement},
	{method: http.MethodGet, path: "/announcements/:id", ep: getAnnouncement},
	{method: http.MethodPatch, path: "/announcements/:id", ep: updateAnnouncement},
	{method: http.MethodDelete, path: "/announcements/:id", ep: deleteAnnouncement},
	{method: http.MethodGet, path: publishedNewsPath, ep: listPublishedNews},
	{method: http.MethodGet, path: "/news/:id", ep: getNews},
	{method: http.MethodPost, path: "/news/:id", ep: updateNews},
	{method: http.MethodPatch, path: "/news/:id", ep: updateNews},
	{method: http.MethodDelete, path: "/news/:id", ep: deleteNews},
}

// Register は /api グループを作成してプロキシルートを登録し、そのグループを返す。
// middlewares はグループ内の全ルートに適用される。
func (h *Handler) Register(r gin.IRouter, middlewares ...gin.HandlerFunc) *gin.RouterGroup {
	g := r.Group(apiPrefix, middlewares...)
	for _, rt := range routes {
		g.Handle(rt.method, rt.path, h.handle(rt.ep))
	}
	// 塞がないと "published" が /news/:id の id として管理APIの更新系に流れる。
	for _, method := range []string{http.MethodPost, http.MethodPatch, http.MethodDelete} {
		g.Handle(method, publishedNewsPath, methodNotAllowed(http.MethodGet))
	}
	return g
}

// methodNotAllowed は上流を呼ばずに405を返すハンドラ。
func methodNotAllowed(allow string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Allow", allow)
		c.JSON(http.StatusMethodNotAllowed, envelope.Failure(msgMethodNotAllowed))
	}
}

// Route はルート一覧表示用のルート情報。
type Route struct {
	// Method はブラウザ向けのメソッド。
	Method string
	// Path はブラウザ向けのパス。
	Path string
	// UpstreamMethod は上流に送るメソッド。
	UpstreamMethod string
	// UpstreamPath は上流パス。
	UpstreamPath string
	// Auth は認証要件（none, optional, required）。
	Auth string
	// Name はログとメトリクスでの識別子。
	Name string
}

// Routes はプロキシが公開するルートの一覧を返す。
func Routes() []Route {
	out := make([]Route, 0, len(routes))
	for _, rt := range routes {
		upstreamMethod := rt.ep.method
		if upstreamMethod == "" {
			upstreamMethod = rt.method
		}
		out = append(out, Route{
			Method:         rt.method,
			Path:           apiPrefix + rt.path,
			UpstreamMethod: upstreamMethod,
			UpstreamPath:   rt.ep.path(":id"),
			Auth:           rt.ep.auth.String(),
			Name:           rt.ep.name,
		})
	}
	return out
}

// handle はエンドポイントごとのハンドラを返す。どの経路でも応答は1回だけ書く。
func (h *Handler) handle(ep endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(h.cookieName)
		if ep.auth == authRequired && token == "" {
			h.metrics.ObserveUpstream(ep.name, outcomeUnauthenticated)
			c.JSON(http.StatusUnauthorized, envelope.Failure(msgNotAuthenticated))
			return
		}

		req, err := h.buildRequest(c, ep, token)
		if err != nil {
			h.logger.Warn("上流リクエストの組み立てに失敗",
				zap.String("endpoint", ep.name),
				zap.String("request_id", middleware.GetRequestID(c)),
				zap.Error(err),
			)
			h.metrics.ObserveUpstream(ep.name, outcomeBadRequest)
			c.JSON(http.StatusInternalServerError, envelope.FailureWithCause(ep.failure, err.Error()))
			return
		}

		ctx := httpclient.WithRequestID(c.Request.Context(), middleware.GetRequestID(c))
		resp, err := h.upstream.Do(ctx, req)
		if err != nil {
			h.logger.Error("上流の呼び出しに失敗",
				zap.String("endpoint", ep.name),
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.String("request_id", middleware.GetRequestID(c)),
				zap.Error(err),
			)
			h.metrics.ObserveUpstream(ep.name, outcomeNetworkError)
			c.JSON(http.StatusInternalServerError, envelope.FailureWithCause(ep.failure, causeOf(err)))
			return
		}

		h.respond(c, ep, req, resp)
	}
}

// buildRequest はブラウザのリクエストから上流リクエストを組み立てる。
func (h *Handler) buildRequest(c *gin.Context, ep endpoint, token string) (*httpclient.Request, error) {
	method := ep.method
	if method == "" {
		method = c.Request.Method
	}
	req := &httpclient.Request{
		Method: method,
		Path:   ep.path(c.Param("id")),
		Query:  filterQuery(c.Request.URL.Query(), ep.query),
		Header: http.Header{},
	}
	req.Header.Set("Accept", "application/json")
	if ep.auth != authNone && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// multipartはboundaryを含むContent-Typeをそのまま使い、ボディも加工しない
	if ep.body == bodyForm && isFormContent(c.ContentType()) {
		body, err := readBody(c)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", c.GetHeader("Content-Type"))
		req.Body = bytes.NewReader(body)
		return req, nil
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if ep.body == bodyNone {
		return req, nil
	}

	body, err := readBody(c)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errInvalidRequestBody
	}
	req.Body = bytes.NewReader(body)
	return req, nil
}

// readBody はリクエストボディを上限付きで全量読み込む。
// 全量読むことで上流リクエストに Content-Length が付く。
func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes))
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの読み込みに失敗: %w", err)
	}
	return body, nil
}

// filterQuery は許可リストに載っている空でないクエリだけを残す。
func filterQuery(in url.Values, allowed []string) url.Values {
	if len(allowed) == 0 {
		return nil
	}
	out := url.Values{}
	for _, key := range allowed {
		if v := in.Get(key); v != "" {
			out.Set(key, v)
		}
	}
	return out
}

// isFormContent はフォーム送信のContent-Typeなら true を返す。
func isFormContent(contentType string) bool {
	return contentType == gin.MIMEMultipartPOSTForm || contentType == gin.MIMEPOSTForm
}

// causeOf はエラーをブラウザに返す原因文字列に変換する。
func causeOf(err error) string {
	if err == nil || err.Error() == "" {
		return "Unknown error"
	}
	return err.Error()
}
