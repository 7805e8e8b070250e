// Package httpserver はGinルーターをHTTPサーバーとして起動し、グレースフルシャットダウンする。
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// readHeaderTimeout はリクエストヘッダー読み込みのタイムアウト。
	readHeaderTimeout = 10 * time.Second
	// ShutdownTimeout は処理中のリクエストを待つ最大時間。
	ShutdownTimeout = 15 * time.Second
)

// Run は ":port" でリッスンして Serve する。
func Run(ctx context.Context, port string, handler http.Handler, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		return fmt.Errorf("ポート %s のリッスンに失敗: %w", port, err)
	}
	return Serve(ctx, ln, handler, logger)
}

// Serve は ln でHTTPサーバーを起動し、ctx がキャンセルされたらシャットダウンする。
// シャットダウンによる停止はエラーにしない。
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTPサーバーを起動します", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("サーバーエラー: %w", err)
	case <-ctx.Done():
		logger.Info("シャットダウンします")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("シャットダウンに失敗: %w", err)
		}
		return nil
	}
}
