// Package cli реализует инструмент командной строки Durable.
//
// # Обзор
//
// CLI — клиентская утилита для HTTP API движка. Работает через HTTP и
// не импортирует внутренние пакеты движка.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Инкапсулирует запросы, разбор ответов
// ({"data": ...} и {"error": {...}}) и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	id, err := client.StartInstance(ctx, "hello", cli.StartInstanceRequest{})
//
// ## Output
//
// Форматирование вывода:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr:
// durable-cli instance list --json | jq .
//
// ## Commands
//
// Cobra-команды по ресурсам:
//   - instance: start, show, list, errors, suspend, resume, terminate
//   - event: publish
//   - definition: list
//
// Группы создаются фабриками (NewInstanceCmd и т.д.), принимающими
// clientFn и outputFn — замыкания, которые создают Client и Output
// после разбора PersistentFlags.
package cli
