// Package types defines the runtime values carried by expression trees and
// produced by evaluating them: null, bool, int, double, string, list, map,
// function and host object values.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ValueType represents the type of a value, or the declared type of a
// parameter or function result.
type ValueType int

const (
	TypeNull     ValueType = iota
	TypeBool               // bool
	TypeInt                // int64
	TypeDouble             // float64
	TypeString             // string
	TypeList               // []Value
	TypeMap                // ordered map of string -> Value
	TypeFunction           // function definition or closure
	TypeObject             // host value exposing members through Object
	TypeAny                // declared type only: no constraint
)

// String returns the type name as returned by the type() builtin.
func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	case TypeFunction:
		return "function"
	case TypeObject:
		return "object"
	case TypeAny:
		return "any"
	default:
		return "unknown"
	}
}

// ParseValueType maps a declared type name to a ValueType. The empty string
// means TypeAny.
func ParseValueType(name string) (ValueType, error) {
	switch name {
	case "", "any":
		return TypeAny, nil
	case "null":
		return TypeNull, nil
	case "bool":
		return TypeBool, nil
	case "int":
		return TypeInt, nil
	case "double":
		return TypeDouble, nil
	case "string":
		return TypeString, nil
	case "list":
		return TypeList, nil
	case "map":
		return TypeMap, nil
	case "function":
		return TypeFunction, nil
	case "object":
		return TypeObject, nil
	}
	return TypeAny, fmt.Errorf("unknown type %q", name)
}

// Object is implemented by host values that can be embedded in a tree as
// constants and expose named members (property-like accessors).
type Object interface {
	Member(name string) (Value, bool)
}

// Value is a runtime value. It uses a tagged union approach for efficiency.
type Value struct {
	typ       ValueType
	boolVal   bool
	intVal    int64
	doubleVal float64
	stringVal string
	listVal   []Value
	mapVal    *OrderedMap
	refVal    any // function payload or Object
}

// OrderedMap maintains insertion order for map keys.
type OrderedMap struct {
	keys   []string
	values map[string]Value
}

// NewOrderedMap creates a new empty ordered map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{
		keys:   make([]string, 0),
		values: make(map[string]Value),
	}
}

// Get retrieves a value by key. Returns the value and whether it exists.
func (m *OrderedMap) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set adds or updates a key-value pair, preserving insertion order.
func (m *OrderedMap) Set(key string, val Value) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = val
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	result := make([]string, len(m.keys))
	copy(result, m.keys)
	return result
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// Null is the singleton null value.
var Null = Value{typ: TypeNull}

func NewBool(v bool) Value      { return Value{typ: TypeBool, boolVal: v} }
func NewInt(v int64) Value      { return Value{typ: TypeInt, intVal: v} }
func NewDouble(v float64) Value { return Value{typ: TypeDouble, doubleVal: v} }
func NewString(v string) Value  { return Value{typ: TypeString, stringVal: v} }
func NewList(v []Value) Value   { return Value{typ: TypeList, listVal: v} }

// NewMap creates a map value from an OrderedMap.
func NewMap(v *OrderedMap) Value {
	return Value{typ: TypeMap, mapVal: v}
}

// NewFunction wraps a function payload (a tree lambda or an evaluator
// closure). The payload must be a pointer so that equality is identity.
func NewFunction(fn any) Value {
	return Value{typ: TypeFunction, refVal: fn}
}

// NewObject wraps a host object so its members can be read by member access.
func NewObject(o Object) Value {
	return Value{typ: TypeObject, refVal: o}
}

// Type returns the value's type.
func (v Value) Type() ValueType {
	return v.typ
}

// IsNull returns true if the value is null.
func (v Value) IsNull() bool {
	return v.typ == TypeNull
}

// AsBool returns the boolean value. Panics if not a bool.
func (v Value) AsBool() bool {
	v.mustBe(TypeBool)
	return v.boolVal
}

// AsInt returns the integer value. Panics if not an int.
func (v Value) AsInt() int64 {
	v.mustBe(TypeInt)
	return v.intVal
}

// AsDouble returns the double value. Panics if not a double.
func (v Value) AsDouble() float64 {
	v.mustBe(TypeDouble)
	return v.doubleVal
}

// AsString returns the string value. Panics if not a string.
func (v Value) AsString() string {
	v.mustBe(TypeString)
	return v.stringVal
}

// AsList returns the list value. Panics if not a list.
func (v Value) AsList() []Value {
	v.mustBe(TypeList)
	return v.listVal
}

// AsMap returns the map value. Panics if not a map.
func (v Value) AsMap() *OrderedMap {
	v.mustBe(TypeMap)
	return v.mapVal
}

// AsFunction returns the function payload. Panics if not a function.
func (v Value) AsFunction() any {
	v.mustBe(TypeFunction)
	return v.refVal
}

// AsObject returns the host object. Panics if not an object.
func (v Value) AsObject() Object {
	v.mustBe(TypeObject)
	return v.refVal.(Object)
}

func (v Value) mustBe(t ValueType) {
	if v.typ != t {
		panic(fmt.Sprintf("%s value used as %s", v.typ, t))
	}
}

// AsNumber returns the numeric value as float64. Works for int and double types.
func (v Value) AsNumber() (float64, bool) {
	switch v.typ {
	case TypeInt:
		return float64(v.intVal), true
	case TypeDouble:
		return v.doubleVal, true
	default:
		return 0, false
	}
}

// Truthy reports whether the value counts as true in a condition.
// Only false and null are falsy.
func (v Value) Truthy() bool {
	switch v.typ {
	case TypeNull:
		return false
	case TypeBool:
		return v.boolVal
	default:
		return true
	}
}

// Conforms reports whether the value may be bound to a slot declared with t.
// Ints conform to double slots.
func (v Value) Conforms(t ValueType) bool {
	switch {
	case t == TypeAny, v.typ == t:
		return true
	case t == TypeDouble && v.typ == TypeInt:
		return true
	}
	return false
}

// LookupMember reads member name off v. Map entries are read as fields,
// objects answer through their Member accessor.
func LookupMember(v Value, name string) (Value, error) {
	switch v.typ {
	case TypeMap:
		val, ok := v.mapVal.Get(name)
		if !ok {
			return Null, NewKeyError(fmt.Sprintf("key '%s' not found in map", name))
		}
		return val, nil
	case TypeObject:
		val, ok := v.AsObject().Member(name)
		if !ok {
			return Null, NewKeyError(fmt.Sprintf("object has no member '%s'", name))
		}
		return val, nil
	default:
		return Null, NewTypeError(fmt.Sprintf("cannot access member '%s' on %s", name, v.typ))
	}
}

// Equal tests deep equality between two values. Functions and objects are
// equal only when they are the same instance.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		if (v.typ == TypeInt || v.typ == TypeDouble) && (other.typ == TypeInt || other.typ == TypeDouble) {
			a, _ := v.AsNumber()
			b, _ := other.AsNumber()
			return a == b
		}
		return false
	}
	switch v.typ {
	case TypeNull:
		return true
	case TypeBool:
		return v.boolVal == other.boolVal
	case TypeInt:
		return v.intVal == other.intVal
	case TypeDouble:
		return v.doubleVal == other.doubleVal
	case TypeString:
		return v.stringVal == other.stringVal
	case TypeList:
		if len(v.listVal) != len(other.listVal) {
			return false
		}
		for i := range v.listVal {
			if !v.listVal[i].Equal(other.listVal[i]) {
				return false
			}
		}
		return true
	case TypeMap:
		if v.mapVal.Len() != other.mapVal.Len() {
			return false
		}
		for _, k := range v.mapVal.keys {
			ov, ok := other.mapVal.Get(k)
			if !ok || !v.mapVal.values[k].Equal(ov) {
				return false
			}
		}
		return true
	case TypeFunction, TypeObject:
		return v.refVal == other.refVal
	}
	return false
}

// String returns a human-readable representation of the value.
func (v Value) String() string {
	switch v.typ {
	case TypeNull:
		return "null"
	case TypeBool:
		if v.boolVal {
			return "true"
		}
		return "false"
	case TypeInt:
		return fmt.Sprintf("%d", v.intVal)
	case TypeDouble:
		if v.doubleVal == math.Trunc(v.doubleVal) && !math.IsInf(v.doubleVal, 0) {
			return fmt.Sprintf("%.1f", v.doubleVal)
		}
		return fmt.Sprintf("%g", v.doubleVal)
	case TypeString:
		return v.stringVal
	case TypeList:
		parts := make([]string, len(v.listVal))
		for i, item := range v.listVal {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TypeMap:
		parts := make([]string, 0, v.mapVal.Len())
		for _, k := range v.mapVal.keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, v.mapVal.values[k].String()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case TypeFunction, TypeObject:
		if s, ok := v.refVal.(fmt.Stringer); ok {
			return s.String()
		}
		return "<" + v.typ.String() + ">"
	}
	return "<unknown>"
}

// MarshalJSON converts a Value to JSON. Maps keep insertion order. Functions
// cannot be serialized; objects can if they implement json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case TypeNull:
		return []byte("null"), nil
	case TypeBool:
		return json.Marshal(v.boolVal)
	case TypeInt:
		return json.Marshal(v.intVal)
	case TypeDouble:
		return json.Marshal(v.doubleVal)
	case TypeString:
		return json.Marshal(v.stringVal)
	case TypeList:
		items := make([]json.RawMessage, len(v.listVal))
		for i, item := range v.listVal {
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			items[i] = b
		}
		return json.Marshal(items)
	case TypeMap:
		buf := []byte{'{'}
		for i, k := range v.mapVal.keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, keyBytes...)
			buf = append(buf, ':')
			valBytes, err := v.mapVal.values[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf = append(buf, valBytes...)
		}
		return append(buf, '}'), nil
	case TypeObject:
		if m, ok := v.refVal.(json.Marshaler); ok {
			return m.MarshalJSON()
		}
	}
	return nil, NewTypeError(fmt.Sprintf("cannot serialize %s value", v.typ))
}

// ValueFromJSON converts a Go value produced by json.Unmarshal or a YAML
// decoder into a Value.
func ValueFromJSON(v interface{}) Value {
	if v == nil {
		return Null
	}
	switch val := v.(type) {
	case bool:
		return NewBool(val)
	case int:
		return NewInt(int64(val))
	case int64:
		return NewInt(val)
	case float64:
		// JSON numbers are float64; convert to int if no fractional part
		if val == math.Trunc(val) && !math.IsInf(val, 0) && val >= math.MinInt64 && val <= math.MaxInt64 {
			return NewInt(int64(val))
		}
		return NewDouble(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return NewInt(i)
		}
		if f, err := val.Float64(); err == nil {
			return NewDouble(f)
		}
		return NewString(val.String())
	case string:
		return NewString(val)
	case []interface{}:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = ValueFromJSON(item)
		}
		return NewList(items)
	case map[string]interface{}:
		m := NewOrderedMap()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.Set(k, ValueFromJSON(val[k]))
		}
		return NewMap(m)
	default:
		return NewString(fmt.Sprintf("%v", val))
	}
}
