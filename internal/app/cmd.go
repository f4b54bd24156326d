package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバーとして起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの削除ワーカーとして起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はマイグレーションだけを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの /health を確認する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[string]Command{
	"serve":       CommandServe,
	"worker":      CommandWorker,
	"migrate":     CommandMigrate,
	"healthcheck": CommandHealthcheck,
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空、またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	cmd, _ := LookupCommand(args)
	return cmd
}

// LookupCommand はParseCommandと同じ解析を行い、
// 先頭の引数が既知のサブコマンドだったかどうかも返す。引数が空の場合はtrue。
func LookupCommand(args []string) (Command, bool) {
	if len(args) == 0 {
		return CommandServe, true
	}
	if cmd, ok := knownCommands[args[0]]; ok {
		return cmd, true
	}
	return CommandServe, false
}
