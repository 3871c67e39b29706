// Durable CLI — инструмент командной строки для управления
// экземплярами workflow и событиями через HTTP API.
//
// Использование:
//
//	durable-cli [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	definition  Зарегистрированные определения
//	instance    Запуск и управление экземплярами
//	event       Публикация событий
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Durable/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCmd(version, os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
