package provider

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Durable/internal/domain"
)

// DataFactory возвращает пустые данные экземпляра для определения
// (указатель, в который декодируется JSON) или nil, если тип данных
// не задан.
type DataFactory func(definitionID string, version int, tenantID string) any

// MarshalData сериализует данные экземпляра.
func MarshalData(data any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	return b, nil
}

// UnmarshalData восстанавливает данные экземпляра.
// Без фабрики (или если фабрика вернула nil) данные декодируются в
// map[string]any.
func UnmarshalData(raw []byte, factory DataFactory, wf *domain.WorkflowInstance) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		if factory != nil {
			return factory(wf.DefinitionID, wf.Version, wf.TenantID), nil
		}
		return nil, nil
	}

	if factory != nil {
		if target := factory(wf.DefinitionID, wf.Version, wf.TenantID); target != nil {
			if err := json.Unmarshal(raw, target); err != nil {
				return nil, fmt.Errorf("unmarshal data: %w", err)
			}
			return target, nil
		}
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	return data, nil
}

// CloneInstance возвращает глубокую копию экземпляра через JSON.
// PersistenceData зарегистрированных типов сохраняет свой тип.
func CloneInstance(wf *domain.WorkflowInstance, factory DataFactory) (*domain.WorkflowInstance, error) {
	b, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("marshal instance: %w", err)
	}

	var raw struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal instance: %w", err)
	}

	clone := &domain.WorkflowInstance{}
	if err := json.Unmarshal(b, clone); err != nil {
		return nil, fmt.Errorf("unmarshal instance: %w", err)
	}

	clone.Data, err = UnmarshalData(raw.Data, factory, clone)
	if err != nil {
		return nil, err
	}
	return clone, nil
}
