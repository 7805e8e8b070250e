// Package gate はすべてのリクエストに対して最初に評価されるアクセスゲートを提供する。
//
// ゲートが判定するのは「認証Cookieがあるか」だけで、トークンの正当性や
// ロールごとの細かな認可はページとAPIハンドラ側の責務とする。
// 判定順は次のとおり。
//  1. パスを Public / API / Asset / Protected に分類する
//  2. API と Asset は無条件に通す
//  3. トークンが無く Public でもなければ /login?redirect=<path> へ
//  4. トークンがありログイン/登録ページなら、ロールに応じたダッシュボードへ
//  5. それ以外は通す
package gate
