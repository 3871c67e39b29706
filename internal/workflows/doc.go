// Package workflows содержит встроенные определения, которые
// регистрирует durable-host:
//
//   - hello    — линейный: приветствие через Transform и Inline шаг
//   - approval — Switch/When по сумме заказа и ожидание события approval
//   - batch    — Foreach по элементам с Delay перед обработкой
package workflows
