package steps

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Durable/internal/engine"
)

// Registry — реестр типов тел шагов.
//
// Позволяет задавать тело шага по имени типа (Step.BodyType) вместо
// конструктора. Потокобезопасен.
type Registry struct {
	mu     sync.RWMutex
	bodies map[string]engine.BodyFactory
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		bodies: make(map[string]engine.BodyFactory),
	}
}

// DefaultRegistry создаёт реестр со всеми встроенными телами.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(StepTypeWhen, func() (engine.StepBody, error) { return &When{}, nil })
	r.Register(StepTypeForeach, func() (engine.StepBody, error) { return &Foreach{}, nil })
	r.Register(StepTypeSwitch, func() (engine.StepBody, error) { return &Switch{}, nil })
	r.Register(StepTypeParallel, func() (engine.StepBody, error) { return &Parallel{}, nil })
	r.Register(StepTypeDelay, func() (engine.StepBody, error) { return &Delay{}, nil })
	r.Register(StepTypeWaitFor, func() (engine.StepBody, error) { return &WaitFor{}, nil })
	r.Register(StepTypeHTTP, func() (engine.StepBody, error) { return NewHTTP(), nil })
	r.Register(StepTypeTransform, func() (engine.StepBody, error) { return &Transform{}, nil })

	return r
}

// Register регистрирует конструктор тела.
// Если тип уже существует, он будет перезаписан.
func (r *Registry) Register(bodyType string, factory engine.BodyFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies[bodyType] = factory
}

// New создаёт тело по типу.
// Возвращает ErrStepNotFound, если тип не зарегистрирован.
func (r *Registry) New(bodyType string) (engine.StepBody, error) {
	r.mu.RLock()
	factory, exists := r.bodies[bodyType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, bodyType)
	}
	return factory()
}

// Has проверяет, зарегистрирован ли тип.
func (r *Registry) Has(bodyType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.bodies[bodyType]
	return exists
}

// Types возвращает список всех зарегистрированных типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.bodies))
	for t := range r.bodies {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Unregister удаляет тип из реестра.
func (r *Registry) Unregister(bodyType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bodies, bodyType)
}
