// 開発用バックエンドのエントリポイント。
// ポータルが呼び出す上流APIをSQLiteで実装し、ローカル開発で外部バックエンドの代わりに使う。
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/cityportal/internal/config"
	"github.com/nao1215/cityportal/internal/devbackend"
	"github.com/nao1215/cityportal/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd はルートコマンドを生成する。
func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "devbackend",
		Short:         "Local stand-in for the city portal backend API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.AddCommand(newServeCmd(&cfgFile))
	return root
}

// newServeCmd はサーバーを起動するコマンドを生成する。
func newServeCmd(cfgFile *string) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the development backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server, err := devbackend.NewServer(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("開発用バックエンドの初期化に失敗: %w", err)
			}
			defer func() { _ = server.Close() }()

			if seed {
				if err := server.Store().Seed(ctx); err != nil {
					return fmt.Errorf("サンプルデータの投入に失敗: %w", err)
				}
			}

			log.Info("開発用バックエンドを起動します",
				zap.String("port", cfg.DevBackend.Port),
				zap.String("db", cfg.DevBackend.DBPath),
			)
			return server.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "insert sample announcements and news when the database is empty")
	return cmd
}
