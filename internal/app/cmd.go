package app

import "strconv"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はニュース取り込みとセッション掃除を行うワーカーモードを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandSeed は動作確認用のニュースを投入することを示す。
	CommandSeed Command = "seed"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandWorker, CommandServe, CommandMigrate, CommandHealthcheck, CommandSeed:
		return Command(args[0])
	default:
		return CommandServe
	}
}

// MigrateAction はmigrateサブコマンドの動作。
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"
	MigrateDown    MigrateAction = "down"
	MigrateVersion MigrateAction = "version"
)

// ParseMigrateArgs は "migrate [up|down [N]|version]" の引数を解析する。
// downのステップ数は省略時1。
func ParseMigrateArgs(args []string) (MigrateAction, int) {
	if len(args) == 0 {
		return MigrateUp, 0
	}
	switch MigrateAction(args[0]) {
	case MigrateDown:
		return MigrateDown, positiveArg(args[1:], 1)
	case MigrateVersion:
		return MigrateVersion, 0
	default:
		return MigrateUp, 0
	}
}

// defaultSeedCount はseedで作成するニュースの既定件数。
const defaultSeedCount = 20

// ParseSeedCount は "seed [N]" の件数を解析する。
func ParseSeedCount(args []string) int {
	return positiveArg(args, defaultSeedCount)
}

// positiveArg は先頭の引数を正の整数として返す。解釈できなければdefaultValを返す。
func positiveArg(args []string, defaultVal int) int {
	if len(args) == 0 {
		return defaultVal
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return defaultVal
	}
	return n
}
