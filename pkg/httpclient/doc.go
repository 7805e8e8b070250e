// Package httpclient は外部バックエンドAPIを呼び出すHTTPクライアントを提供する。
//
// アクセスゲートのロール取得とプロキシハンドラの転送はすべてこのクライアントを通る。
// レスポンスボディは常に全量を読み込んでから返すため、空ボディやJSONでない
// エラーページの扱いは呼び出し側で判断できる。リトライは行わない。
package httpclient
