package proxy

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ペイロード形状を伝えるレスポンスヘッダー。
const (
	HeaderPayloadKind = "X-Payload-Kind"
	HeaderTotalCount  = "X-Total-Count"
)

// PayloadKind は成功レスポンスの形状。
type PayloadKind string

const (
	// KindList は一覧。
	KindList PayloadKind = "list"
	// KindItem は単体。
	KindItem PayloadKind = "item"
)

// maxDataDepth は data を辿る最大の深さ。data.data.data まで見る。
const maxDataDepth = 3

// PayloadShape はバックエンドのレスポンスから読み取った形状。
type PayloadShape struct {
	Kind PayloadKind
	// Items は一覧の件数（このページ分）。
	Items int
	// Total は全件数。ページング情報が無ければ Items と同じ。
	Total int
	// Page は現在のページ。不明なら0。
	Page int
}

// Shape はバックエンドのレスポンスボディの形状を判定する。
// ページングの包み方はエンドポイントによって data / data.data / data.data.data と揺れるため、
// data を辿って最初に見つかった配列を一覧とみなす。件数は配列と同じ階層か meta から読む。
// 配列が見つからなければ単体とする。
func Shape(body []byte) PayloadShape {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return PayloadShape{Kind: KindItem}
	}
	if items, ok := root.([]any); ok {
		return PayloadShape{Kind: KindList, Items: len(items), Total: len(items)}
	}

	cur, ok := root.(map[string]any)
	for depth := 0; ok && depth < maxDataDepth; depth++ {
		switch data := cur["data"].(type) {
		case []any:
			s := PayloadShape{Kind: KindList, Items: len(data), Total: len(data)}
			if total, ok := pagingInt(cur, "total"); ok {
				s.Total = total
			}
			s.Page, _ = pagingInt(cur, "current_page")
			return s
		case map[string]any:
			cur = data
		default:
			ok = false
		}
	}
	return PayloadShape{Kind: KindItem}
}

// pagingInt は obj[key] か obj.meta[key] の数値を返す。
func pagingInt(obj map[string]any, key string) (int, bool) {
	if n, ok := obj[key].(float64); ok {
		return int(n), true
	}
	if meta, ok := obj["meta"].(map[string]any); ok {
		if n, ok := meta[key].(float64); ok {
			return int(n), true
		}
	}
	return 0, false
}

// SetHeaders は形状をレスポンスヘッダーに書き込む。
func (s PayloadShape) SetHeaders(h http.Header) {
	h.Set(HeaderPayloadKind, string(s.Kind))
	if s.Kind == KindList {
		h.Set(HeaderTotalCount, strconv.Itoa(s.Total))
	}
}
