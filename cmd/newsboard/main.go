// Command newsboard はニュースとコメントのWebアプリケーションを起動する。
//
//	newsboard [serve]            Webサーバー
//	newsboard worker             ニュース取り込みとセッション掃除
//	newsboard migrate [up|down [N]|version]
//	newsboard seed [N]           動作確認用のニュースをN件作成
//	newsboard healthcheck        /healthを確認（Dockerヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/newsboard/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "newsboard: %v\n", err)
		os.Exit(1)
	}
}
