// Package portal は市ポータルのエッジサーバーを組み立てる。
//
// ルーティングは次のとおり。
//
//	/health, /metrics      ゲートの外。常に応答する
//	/api/...               アクセスゲート → APIプロキシ
//	それ以外               アクセスゲート → ページ配信
//
// 全体のミドルウェアは RequestID → Logger → Recovery → Metrics → CORS の順に適用する。
package portal
