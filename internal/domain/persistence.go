package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// ControlPersistenceData — маркер контейнерных шагов (When, Foreach, Switch):
// дочерние ветки созданы и выполняются.
type ControlPersistenceData struct {
	ChildrenActive bool `json:"children_active"`
}

// persistenceEnvelope — сериализованный PersistenceData с именем типа.
type persistenceEnvelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

var (
	persistenceMu    sync.RWMutex
	persistenceTypes = map[string]reflect.Type{}
)

func init() {
	RegisterPersistenceType(&ControlPersistenceData{})
}

// RegisterPersistenceType регистрирует тип PersistenceData, чтобы после
// загрузки из хранилища тело шага получило тот же тип, что сохранило.
// Незарегистрированные типы восстанавливаются как результат json.Unmarshal в any.
func RegisterPersistenceType(sample any) {
	t := reflect.TypeOf(sample)
	persistenceMu.Lock()
	defer persistenceMu.Unlock()
	persistenceTypes[t.String()] = t
}

func wrapPersistence(v any) (*persistenceEnvelope, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal persistence data: %w", err)
	}
	return &persistenceEnvelope{Type: reflect.TypeOf(v).String(), Value: b}, nil
}

func unwrapPersistence(env *persistenceEnvelope) (any, error) {
	if env == nil {
		return nil, nil
	}

	persistenceMu.RLock()
	t, ok := persistenceTypes[env.Type]
	persistenceMu.RUnlock()

	if !ok {
		var v any
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("unmarshal persistence data %s: %w", env.Type, err)
		}
		return v, nil
	}

	if t.Kind() == reflect.Pointer {
		ptr := reflect.New(t.Elem())
		if err := json.Unmarshal(env.Value, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("unmarshal persistence data %s: %w", env.Type, err)
		}
		return ptr.Interface(), nil
	}

	ptr := reflect.New(t)
	if err := json.Unmarshal(env.Value, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("unmarshal persistence data %s: %w", env.Type, err)
	}
	return ptr.Elem().Interface(), nil
}
