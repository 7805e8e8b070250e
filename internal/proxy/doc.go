// Package proxy はブラウザからのAPIリクエストを外部バックエンドへ転送するハンドラを提供する。
//
// 各ハンドラは次の順で処理し、必ず1回だけJSONで応答する。
//
//	認証Cookie確認 → (401) | 上流リクエスト組み立て → 送信 → (通信失敗 500)
//	→ ボディ読み込み → 空ボディ | JSON解析 → (解析失敗 500) | ステータスで分岐 → 応答
//
// HTTP-onlyのCookieに入ったトークンは Authorization: Bearer ヘッダーに載せ替える。
// クエリはエンドポイントごとの許可リストに載ったものだけを転送する。
package proxy
