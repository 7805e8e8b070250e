package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/nao1215/cityportal/internal/config"
	"github.com/nao1215/cityportal/internal/portal"
	"github.com/nao1215/cityportal/internal/proxy"
	"github.com/nao1215/cityportal/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRootCmd はルートコマンドを生成する。
func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "portal",
		Short:         "City portal edge server",
		Long:          "Serves the city portal pages behind the access gate and proxies /api requests to the backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(newServeCmd(&cfgFile))
	root.AddCommand(newRoutesCmd())
	return root
}

// newServeCmd はサーバーを起動するコマンドを生成する。
func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal server",
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

			log.Info("設定を読み込みました",
				zap.String("site", cfg.Site.Name),
				zap.String("backend", cfg.Backend.URL),
				zap.String("role_fallback", string(cfg.Gate.RoleFallback)),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := portal.NewServer(cfg, log).Run(ctx); err != nil {
				return fmt.Errorf("ポータルの実行に失敗: %w", err)
			}
			return nil
		},
	}
}

// newRoutesCmd はプロキシのルート一覧を表示するコマンドを生成する。
func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the API proxy route table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printRoutes(cmd.OutOrStdout())
		},
	}
}

// printRoutes はルート一覧を表形式で書き出す。
func printRoutes(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tPATH\tUPSTREAM\tAUTH\tNAME")
	for _, r := range proxy.Routes() {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\n", r.Method, r.Path, r.UpstreamMethod, r.UpstreamPath, r.Auth, r.Name)
	}
	return tw.Flush()
}
