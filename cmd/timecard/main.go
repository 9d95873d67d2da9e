// Command timecard は勤務時間記録サービスのエントリーポイント。
//
//	timecard [serve]                APIサーバーを起動する
//	timecard worker                 期限切れログインセッションの削除ジョブを起動する
//	timecard migrate [up|down|version]
//	timecard healthcheck            /health を確認する（コンテナのヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/timecard/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "timecard: %v\n", err)
		os.Exit(1)
	}
}
