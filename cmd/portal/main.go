// 市ポータルのエッジサーバーのエントリポイント。
// アクセスゲート、APIプロキシ、ページ配信を1プロセスで提供する。
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
