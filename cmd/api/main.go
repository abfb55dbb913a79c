// naraigoto は子ども向け習い事マーケットプレイスのバックエンド。
// serve / worker / migrate / healthcheck のサブコマンドで起動する。
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/minami/naraigoto/internal/app"
)

func main() {
	// .envはローカル開発用。存在しなくてもエラーにしない
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
