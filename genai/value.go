package genai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ValueKind is the tag of a Value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueNumber
	ValueString
	ValueList
	ValueObject
)

// Value is a dynamically shaped JSON value: tool input schemas, tool
// arguments and tool result payloads. Object members keep the order in which
// they were decoded or built, so re-encoding reproduces the source text
// (modulo insignificant whitespace). The zero Value is JSON null.
type Value struct {
	kind ValueKind
	b    bool
	num  json.Number
	str  string
	list []Value
	obj  *orderedmap.OrderedMap[string, Value]
}

// Member is one key/value pair of a JSON object.
type Member struct {
	Key   string
	Value Value
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: ValueBool, b: b} }

func String(s string) Value { return Value{kind: ValueString, str: s} }

func Int(i int64) Value {
	return Value{kind: ValueNumber, num: json.Number(strconv.FormatInt(i, 10))}
}

func Float(f float64) Value {
	return Value{kind: ValueNumber, num: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

func List(items ...Value) Value {
	return Value{kind: ValueList, list: items}
}

// Object builds an ordered JSON object. A repeated key keeps its first
// position and takes the last value.
func Object(members ...Member) Value {
	om := orderedmap.New[string, Value](len(members))
	for _, m := range members {
		om.Set(m.Key, m.Value)
	}
	return Value{kind: ValueObject, obj: om}
}

// ParseJSON decodes data into a Value, preserving object member order.
func ParseJSON(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, err
	}
	return v, nil
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNull() bool { return v.kind == ValueNull }

// AsString returns the string payload and whether v is a string.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == ValueString
}

// AsBool returns the bool payload and whether v is a bool.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == ValueBool
}

// AsFloat returns the numeric payload and whether v is a number.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != ValueNumber {
		return 0, false
	}
	f, err := v.num.Float64()
	return f, err == nil
}

// Items returns the elements of a list, or nil.
func (v Value) Items() []Value {
	if v.kind != ValueList {
		return nil
	}
	return v.list
}

// Members returns the members of an object in order, or nil.
func (v Value) Members() []Member {
	if v.kind != ValueObject || v.obj == nil {
		return nil
	}
	out := make([]Member, 0, v.obj.Len())
	for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Member{Key: pair.Key, Value: pair.Value})
	}
	return out
}

// Get looks up key in an object.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != ValueObject || v.obj == nil {
		return Value{}, false
	}
	return v.obj.Get(key)
}

// Len is the number of list items or object members.
func (v Value) Len() int {
	switch v.kind {
	case ValueList:
		return len(v.list)
	case ValueObject:
		if v.obj == nil {
			return 0
		}
		return v.obj.Len()
	default:
		return 0
	}
}

// String renders v as compact JSON. Encoding never fails for values built
// through this package, so errors render as an empty string.
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}

// MarshalJSON encodes v compactly, in member order, without HTML escaping.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case ValueNull:
		buf.WriteString("null")
	case ValueBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case ValueNumber:
		buf.WriteString(v.num.String())
	case ValueString:
		return encodeString(buf, v.str)
	case ValueList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case ValueObject:
		buf.WriteByte('{')
		if v.obj != nil {
			first := true
			for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
				if !first {
					buf.WriteByte(',')
				}
				first = false
				if err := encodeString(buf, pair.Key); err != nil {
					return err
				}
				buf.WriteByte(':')
				if err := pair.Value.encode(buf); err != nil {
					return err
				}
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value kind %d", v.kind)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// UnmarshalJSON decodes any JSON text into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case 'n':
		if string(data) != "null" {
			return fmt.Errorf("invalid JSON literal %q", data)
		}
		*v = Null()
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case '[':
		var items []Value
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		if items == nil {
			items = []Value{}
		}
		*v = Value{kind: ValueList, list: items}
	case '{':
		if !json.Valid(data) {
			return fmt.Errorf("invalid JSON object")
		}
		om := orderedmap.New[string, Value]()
		if err := om.UnmarshalJSON(data); err != nil {
			return err
		}
		*v = Value{kind: ValueObject, obj: om}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Value{kind: ValueNumber, num: n}
	}
	return nil
}
