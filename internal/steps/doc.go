// Package steps содержит встроенные тела шагов workflow.
//
// # Обзор
//
// Тело шага реализует engine.StepBody:
//
//	type StepBody interface {
//	    Run(ctx context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error)
//	}
//
// Входы тела — экспортируемые поля, которые executor заполняет через
// Step.Inputs перед Run. Выходы — поля, которые Step.Outputs копирует в
// данные workflow после завершения шага. Тело не меняет указатели само:
// оно возвращает ExecutionResult, а executor применяет его.
//
// # Контейнеры
//
// When, Foreach, Switch и Parallel ветвятся: первый запуск возвращает
// Branch с маркером ControlPersistenceData{ChildrenActive: true}, каждый
// следующий проверяет завершённость веток и возвращает Persist (ждём)
// или Next (все ветки завершены). Маркер другого типа — ошибка
// engine.ErrCorruptPersistenceData.
//
//	Switch  — outcome = Value; дочерние When сравнивают с ним ExpectedOutcome
//	When    — одна ветка, если outcome родителя совпал
//	Foreach — ветка на каждый элемент Collection (элемент = ContextItem)
//	Parallel — одна ветка на все дочерние шаги
//
// # Остальные тела
//
//	Delay     — Sleep на Period, затем Next
//	WaitFor   — WaitForEvent, после доставки EventData и Next
//	HTTP      — запрос, outcome = код ответа, 5xx — ошибка шага
//	Transform — рендеринг Mappings в Result через Go templates
//
// # Registry
//
// Шаг может задавать тело по имени типа (Step.BodyType) вместо
// конструктора:
//
//	bodies := steps.DefaultRegistry()
//	body, err := bodies.New(steps.StepTypeForeach)
//
// Конструкторы определений (WhenStep, ForeachStep и т.д.) собирают
// engine.Step с нужными входами.
package steps
