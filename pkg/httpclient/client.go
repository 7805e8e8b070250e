package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// maxResponseBytes は読み込むレスポンスボディの上限。
const maxResponseBytes = 10 << 20

// ErrUnexpectedStatus は上流が2xx以外を返したことを表す。
var ErrUnexpectedStatus = errors.New("上流が2xx以外のステータスを返しました")

// Client はバックエンド通信用のHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先バックエンドのオリジン。
	baseURL string
}

// Request は上流へ送るリクエスト。
type Request struct {
	// Method はHTTPメソッド。
	Method string
	// Path は "/api/..." から始まる上流パス。
	Path string
	// Query は転送するクエリパラメータ。
	Query url.Values
	// Header は転送するヘッダー。
	Header http.Header
	// Body はリクエストボディ。nilならボディ無し。
	Body io.Reader
}

// Response は上流から受け取ったレスポンス。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Header はレスポンスヘッダー。
	Header http.Header
	// Body はレスポンスボディの全量。
	Body []byte
}

// OK はステータスが2xxなら true を返す。
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// New は新しいクライアントを生成する。
// baseURL には末尾スラッシュの無いオリジン（例: "http://localhost:8000"）を指定する。
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

// BaseURL は接続先のオリジンを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL はパスとクエリから上流の完全なURLを組み立てる。
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

// Do はリクエストを送信し、レスポンスボディを全量読み込んで返す。
// ネットワークエラーとボディ読み込みエラーのみをエラーとして返し、
// ステータスコードの解釈は呼び出し側に任せる。
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, c.URL(r.Path, r.Query), r.Body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	// コンテキストからリクエストIDを伝播する
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok && id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// GetJSON は指定パスにGETリクエストを送信し、レスポンスボディをresultにデシリアライズする。
// 2xx以外は ErrUnexpectedStatus をラップしたエラーになる。
func (c *Client) GetJSON(ctx context.Context, path string, header http.Header, result any) error {
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Accept", "application/json")

	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Header: h})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: status=%d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyRequestID はコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID contextKey = "request_id"

// WithRequestID はコンテキストにリクエストIDを設定する。
// 上流呼び出し時に X-Request-ID ヘッダーとして伝播される。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}
