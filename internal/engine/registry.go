package engine

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// definitionKey — ключ определения без версии.
type definitionKey struct {
	id     string
	tenant string
}

// Registry — реестр определений workflow.
//
// Определение уникально по (id, version, tenant). Поиск без версии
// (version <= 0) возвращает максимальную зарегистрированную версию.
// Потокобезопасен.
type Registry struct {
	mu   sync.RWMutex
	defs map[definitionKey][]*Definition // версии по возрастанию
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[definitionKey][]*Definition),
	}
}

// Register валидирует и регистрирует определение.
// Возвращает ErrDuplicateDefinition, если (id, version, tenant) уже занят.
func (r *Registry) Register(def *Definition) error {
	if err := Validate(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := definitionKey{id: def.ID, tenant: def.TenantID}
	versions := r.defs[key]
	for _, existing := range versions {
		if existing.Version == def.Version {
			return fmt.Errorf("%w: %s version %d (tenant %q)", ErrDuplicateDefinition, def.ID, def.Version, def.TenantID)
		}
	}

	versions = append(versions, def)
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})
	r.defs[key] = versions
	return nil
}

// MustRegister регистрирует определение и паникует при ошибке.
// Используется при старте процесса для встроенных определений.
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Get возвращает определение. version <= 0 — последняя версия.
func (r *Registry) Get(id string, version int, tenant string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.defs[definitionKey{id: id, tenant: tenant}]
	if len(versions) == 0 {
		return nil, &NotRegisteredError{ID: id, Version: version, TenantID: tenant}
	}

	if version <= 0 {
		return versions[len(versions)-1], nil
	}

	for _, def := range versions {
		if def.Version == version {
			return def, nil
		}
	}
	return nil, &NotRegisteredError{ID: id, Version: version, TenantID: tenant}
}

// IsRegistered проверяет, зарегистрировано ли определение.
func (r *Registry) IsRegistered(id string, version int, tenant string) bool {
	_, err := r.Get(id, version, tenant)
	return err == nil
}

// Deregister удаляет версию определения.
func (r *Registry) Deregister(id string, version int, tenant string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := definitionKey{id: id, tenant: tenant}
	versions := r.defs[key]
	for i, def := range versions {
		if def.Version == version {
			versions = append(versions[:i:i], versions[i+1:]...)
			break
		}
	}
	if len(versions) == 0 {
		delete(r.defs, key)
		return
	}
	r.defs[key] = versions
}

// List возвращает все определения, отсортированные по (tenant, id, version).
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Definition
	for _, versions := range r.defs {
		result = append(result, versions...)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.TenantID != b.TenantID {
			return a.TenantID < b.TenantID
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Version < b.Version
	})
	return result
}

// Count возвращает количество зарегистрированных определений (с учётом версий).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, versions := range r.defs {
		n += len(versions)
	}
	return n
}

// NewData возвращает пустые данные экземпляра определения или nil.
// Сигнатура совпадает с provider.DataFactory: хранилище восстанавливает
// данные в тип определения. Не-указатели (например, map) не годятся
// для декодирования, для них возвращается nil.
func (r *Registry) NewData(id string, version int, tenant string) any {
	def, err := r.Get(id, version, tenant)
	if err != nil || def.NewData == nil {
		return nil
	}
	data := def.NewData()
	if reflect.ValueOf(data).Kind() != reflect.Pointer {
		return nil
	}
	return data
}
