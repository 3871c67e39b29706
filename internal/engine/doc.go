// Package engine содержит модель определений workflow.
//
// Включает:
//   - definition.go — Definition, Step, Outcome, хуки и политика ошибок
//   - result.go     — ExecutionResult, ExecutionContext, StepBody
//   - binding.go    — связывание входов и выходов тел шагов с данными
//   - template.go   — Go templates для входов и условий ({{ .Data.x }})
//   - registry.go   — реестр определений (id, version, tenant)
//   - validate.go   — валидация определения при регистрации
//   - dag.go        — граф шагов: циклы вложенности, недостижимые шаги
//   - parser.go     — декларативные определения из YAML/JSON
//   - pointers.go   — создание genesis/next/child указателей
//
// Engine описывает, ЧТО выполнять; как применять результаты к
// указателям, решает пакет executor.
package engine
