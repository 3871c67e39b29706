package engine

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Input связывает значение из данных workflow с полем тела шага.
type Input struct {
	// Field — экспортируемое поле тела шага.
	Field string

	// Value вычисляет значение по данным и контексту выполнения.
	Value func(data any, ec *ExecutionContext) (any, error)
}

// Output связывает поле тела шага с данными workflow.
// Применяется только когда шаг завершился (Proceed).
type Output struct {
	// Target — путь в данных workflow ("total" или "order.total").
	Target string

	// Value извлекает значение из тела шага.
	Value func(body StepBody) (any, error)
}

// Const — вход с константным значением.
func Const(field string, value any) Input {
	return Input{Field: field, Value: func(any, *ExecutionContext) (any, error) {
		return value, nil
	}}
}

// FromData — вход из данных workflow по пути.
func FromData(field, path string) Input {
	return Input{Field: field, Value: func(data any, _ *ExecutionContext) (any, error) {
		return GetPath(data, path)
	}}
}

// FromItem — вход из элемента итерации указателя.
func FromItem(field string) Input {
	return Input{Field: field, Value: func(_ any, ec *ExecutionContext) (any, error) {
		return ec.Item, nil
	}}
}

// FromTemplate — вход из Go template над данными и контекстом.
func FromTemplate(field, tmpl string) Input {
	return Input{Field: field, Value: func(data any, ec *ExecutionContext) (any, error) {
		return Render(tmpl, NewTemplateContext(data, ec))
	}}
}

// ToData — выход: поле тела field записывается в данные по пути target.
func ToData(target, field string) Output {
	return Output{Target: target, Value: func(body StepBody) (any, error) {
		return GetPath(body, field)
	}}
}

// BindInputs присваивает входы полям тела с приведением примитивных типов.
func BindInputs(body StepBody, inputs []Input, data any, ec *ExecutionContext) error {
	for _, in := range inputs {
		v, err := in.Value(data, ec)
		if err != nil {
			return fmt.Errorf("%w: input %s: %v", ErrBinding, in.Field, err)
		}
		if err := SetPath(body, in.Field, v); err != nil {
			return fmt.Errorf("%w: input %s: %v", ErrBinding, in.Field, err)
		}
	}
	return nil
}

// BindOutputs записывает выходы тела в данные workflow.
func BindOutputs(body StepBody, outputs []Output, data any) error {
	for _, out := range outputs {
		v, err := out.Value(body)
		if err != nil {
			return fmt.Errorf("%w: output %s: %v", ErrBinding, out.Target, err)
		}
		if err := SetPath(data, out.Target, v); err != nil {
			return fmt.Errorf("%w: output %s: %v", ErrBinding, out.Target, err)
		}
	}
	return nil
}

// GetPath читает значение по пути через map[string]any и поля структур.
func GetPath(root any, path string) (any, error) {
	cur := reflect.ValueOf(root)
	for _, part := range strings.Split(path, ".") {
		cur = indirect(cur)
		if !cur.IsValid() {
			return nil, fmt.Errorf("path %q: nil at %q", path, part)
		}

		switch cur.Kind() {
		case reflect.Map:
			if cur.Type().Key().Kind() != reflect.String {
				return nil, fmt.Errorf("path %q: map key is not string", path)
			}
			v := cur.MapIndex(reflect.ValueOf(part).Convert(cur.Type().Key()))
			if !v.IsValid() {
				return nil, nil
			}
			cur = v
		case reflect.Struct:
			f := cur.FieldByName(part)
			if !f.IsValid() {
				return nil, fmt.Errorf("path %q: no field %q in %s", path, part, cur.Type())
			}
			cur = f
		default:
			return nil, fmt.Errorf("path %q: cannot descend into %s", path, cur.Kind())
		}
	}

	cur = indirectInterface(cur)
	if !cur.IsValid() {
		return nil, nil
	}
	return cur.Interface(), nil
}

// SetPath записывает значение по пути. Промежуточные map создаются при необходимости.
func SetPath(root any, path string, value any) error {
	rv := reflect.ValueOf(root)
	if rv.Kind() != reflect.Map && rv.Kind() != reflect.Pointer {
		return fmt.Errorf("path %q: target %T is not addressable", path, root)
	}
	return setPath(rv, strings.Split(path, "."), value)
}

func setPath(cur reflect.Value, parts []string, value any) error {
	cur = indirect(cur)
	if !cur.IsValid() {
		return fmt.Errorf("nil target at %q", parts[0])
	}
	name := parts[0]
	last := len(parts) == 1

	switch cur.Kind() {
	case reflect.Map:
		if cur.IsNil() {
			return fmt.Errorf("nil map at %q", name)
		}
		if cur.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("map key is not string at %q", name)
		}
		key := reflect.ValueOf(name).Convert(cur.Type().Key())
		elemType := cur.Type().Elem()
		if last {
			v, err := Coerce(value, elemType)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			cur.SetMapIndex(key, v)
			return nil
		}
		next := cur.MapIndex(key)
		if !next.IsValid() || indirectInterface(next).Kind() != reflect.Map {
			child := map[string]any{}
			cur.SetMapIndex(key, reflect.ValueOf(child))
			return setPath(reflect.ValueOf(child), parts[1:], value)
		}
		return setPath(indirectInterface(next), parts[1:], value)

	case reflect.Struct:
		f := cur.FieldByName(name)
		if !f.IsValid() {
			return fmt.Errorf("no field %q in %s", name, cur.Type())
		}
		if !f.CanSet() {
			return fmt.Errorf("field %q in %s is not settable", name, cur.Type())
		}
		if last {
			v, err := Coerce(value, f.Type())
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			f.Set(v)
			return nil
		}
		if f.Kind() == reflect.Map && f.IsNil() {
			f.Set(reflect.MakeMap(f.Type()))
		}
		if f.Kind() == reflect.Pointer && f.IsNil() {
			f.Set(reflect.New(f.Type().Elem()))
		}
		return setPath(f, parts[1:], value)

	default:
		return fmt.Errorf("cannot set %q on %s", name, cur.Kind())
	}
}

// Coerce приводит value к типу t.
//
// Правила:
//   - nil → нулевое значение t
//   - присваиваемые типы — как есть
//   - строка ↔ число/bool — через strconv
//   - число ↔ число — через reflect.Convert
//   - слайс → слайс, map → map — поэлементно
func Coerce(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	switch {
	case t.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(t), nil

	case rv.Kind() == reflect.String && isScalar(t.Kind()):
		return parseScalar(rv.String(), t)

	case isNumber(rv.Kind()) && isNumber(t.Kind()):
		return rv.Convert(t), nil

	case rv.Kind() == reflect.Map && t.Kind() == reflect.Map:
		out := reflect.MakeMapWithSize(t, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := Coerce(iter.Key().Interface(), t.Key())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %v: %w", iter.Key(), err)
			}
			v, err := Coerce(iter.Value().Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %v: %w", iter.Key(), err)
			}
			out.SetMapIndex(k, v)
		}
		return out, nil

	case rv.Kind() == reflect.Slice && t.Kind() == reflect.Slice:
		out := reflect.MakeSlice(t, rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := Coerce(rv.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			out.Index(i).Set(item)
		}
		return out, nil

	case rv.Type().ConvertibleTo(t) && rv.Kind() != reflect.String:
		return rv.Convert(t), nil
	}

	return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", value, t)
}

func parseScalar(s string, t reflect.Type) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	switch {
	case t.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetBool(b)
	case isInt(t.Kind()):
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetInt(n)
	case isUint(t.Kind()):
		n, err := strconv.ParseUint(strings.TrimSpace(s), 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetUint(n)
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetFloat(f)
	}
	return v, nil
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func indirectInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isNumber(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || k == reflect.Float32 || k == reflect.Float64
}

func isScalar(k reflect.Kind) bool {
	return isNumber(k) || k == reflect.Bool
}

// OutcomeEquals сравнивает значения outcome: сначала на равенство,
// затем по строковому представлению (true == "true", 1 == 1.0).
func OutcomeEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if nativeEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// nativeEqual — a == b без паники: структура с полем-интерфейсом
// может нести несравнимое значение (срез, map).
func nativeEqual(a, b any) (eq bool) {
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
