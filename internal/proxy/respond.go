package proxy

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/cityportal/pkg/envelope"
	"github.com/nao1215/cityportal/pkg/httpclient"
	"go.uber.org/zap"
)

const (
	msgDeleted       = "Deleted successfully"
	msgEmptyResponse = "Empty response from server"
	msgInvalidJSON   = "Invalid JSON response from server"
)

// excerptLimit は不正なレスポンスを診断用に返す際の最大バイト数。
const excerptLimit = 200

// respond は上流のレスポンスを正規化してブラウザに返す。
func (h *Handler) respond(c *gin.Context, ep endpoint, req *httpclient.Request, resp *httpclient.Response) {
	body := bytes.TrimSpace(resp.Body)

	if len(body) == 0 {
		switch {
		case resp.OK() && ep.deletion:
			h.metrics.ObserveUpstream(ep.name, outcomeOK)
			c.JSON(http.StatusOK, envelope.OK(msgDeleted))
		case resp.OK():
			h.metrics.ObserveUpstream(ep.name, outcomeEmptyBody)
			c.JSON(http.StatusInternalServerError, envelope.Failure(msgEmptyResponse))
		default:
			h.metrics.ObserveUpstream(ep.name, outcomeUpstreamError)
			c.JSON(resp.StatusCode, envelope.Failure(ep.failure))
		}
		return
	}

	// 上流の非2xxでも本文がJSONでなければステータスは転写せず500にまとめる。
	if !json.Valid(body) {
		h.logger.Warn("上流がJSONでないレスポンスを返しました",
			zap.String("endpoint", ep.name),
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("content_type", resp.Header.Get("Content-Type")),
		)
		h.metrics.ObserveUpstream(ep.name, outcomeInvalidJSON)
		c.JSON(http.StatusInternalServerError, envelope.FailureWithDetails(msgInvalidJSON, excerpt(body)))
		return
	}

	if !resp.OK() {
		h.metrics.ObserveUpstream(ep.name, outcomeUpstreamError)
		c.JSON(resp.StatusCode, upstreamFailure(body, ep.failure))
		return
	}

	Shape(body).SetHeaders(c.Writer.Header())
	h.metrics.ObserveUpstream(ep.name, outcomeOK)
	c.Data(resp.StatusCode, "application/json; charset=utf-8", body)
}

// upstreamFailure は上流のJSONエラーから失敗レスポンスを作る。
// message があれば error に、errors があれば details に載せる。
func upstreamFailure(body []byte, fallback string) envelope.Envelope {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return envelope.Failure(fallback)
	}

	msg := fallback
	var details any = parsed
	if obj, ok := parsed.(map[string]any); ok {
		if m, ok := obj["message"].(string); ok && m != "" {
			msg = m
		} else if e, ok := obj["error"].(string); ok && e != "" {
			msg = e
		}
		if errs, ok := obj["errors"]; ok && errs != nil {
			details = errs
		}
	}
	return envelope.FailureWithDetails(msg, details)
}

// excerpt はボディの先頭を文字化けしない範囲で切り出す。
func excerpt(body []byte) string {
	if len(body) > excerptLimit {
		body = body[:excerptLimit]
	}
	return strings.ToValidUTF8(string(body), "")
}
