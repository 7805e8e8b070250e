// Package middleware はポータルと開発用バックエンドで共通して使うGinミドルウェアを提供する。
//
// リクエストIDの付与、zapによるリクエストログ、パニックリカバリ、CORS設定、
// 開発用バックエンドのトークン検証を含む。
package middleware
