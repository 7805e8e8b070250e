// Package devbackend はローカル開発とE2Eテスト用のバックエンドを提供する。
//
// ポータルが呼び出す上流の契約だけを実装する。
//
//	POST   /api/auth/login            トークン発行とCookie設定
//	POST   /api/auth/logout           Cookie削除
//	GET    /api/auth/me               ログイン中ユーザー
//	GET    /api/announcements         お知らせ一覧（ページング）
//	POST   /api/announcements         お知らせ作成（admin）
//	GET    /api/announcements/:id     お知らせ取得
//	PATCH  /api/announcements/:id     お知らせ更新（admin）
//	DELETE /api/announcements/:id     お知らせ削除（admin）
//	GET    /api/admin/news/:id        ニュース取得（admin）
//	POST   /api/admin/news/:id        ニュース作成・更新（admin、JSONまたはmultipart）
//	DELETE /api/admin/news/:id        ニュース削除（admin、204）
//	GET    /api/news/published        公開済みニュース一覧（ページング）
//
// エラーレスポンスは {"message": ..., "errors": {...}} の形で返す。
package devbackend
