package app

import "fmt"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// MigrateAction はmigrateサブコマンドの操作を表す。
type MigrateAction string

const (
	// MigrateUp は未適用のマイグレーションをすべて適用する。
	MigrateUp MigrateAction = "up"
	// MigrateDown は直近のマイグレーションを1つ戻す。
	MigrateDown MigrateAction = "down"
	// MigrateVersion は適用済みバージョンを表示する。
	MigrateVersion MigrateAction = "version"
)

// ParseMigrateAction はmigrateに続く引数から操作を解析する。
// 引数が空の場合はMigrateUpを返す。
func ParseMigrateAction(args []string) (MigrateAction, error) {
	if len(args) == 0 {
		return MigrateUp, nil
	}
	switch action := MigrateAction(args[0]); action {
	case MigrateUp, MigrateDown, MigrateVersion:
		return action, nil
	default:
		return "", fmt.Errorf("unknown migrate action: %q (want up, down or version)", args[0])
	}
}
