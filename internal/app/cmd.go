package app

// Command はnaraigotoバイナリの起動モードを表す。
// 単一バイナリでAPIサーバー・ワーカー・運用コマンドを兼ねる。
type Command string

const (
	// CommandServe はAPIサーバーとして起動する（デフォルト）。
	CommandServe Command = "serve"
	// CommandWorker はロゴ取得・クリーンアップのワーカーとして起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中のサーバーに対するヘルスチェックを行う。
	// シェルを持たないdistrolessイメージのDocker HEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	"serve":       CommandServe,
	"worker":      CommandWorker,
	"migrate":     CommandMigrate,
	"healthcheck": CommandHealthcheck,
}

// ParseCommand は先頭のコマンドライン引数からサブコマンドを決定する。
// 引数なし、または未知のサブコマンドの場合はCommandServeとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}
