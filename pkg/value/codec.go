package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"

	"github.com/buger/jsonparser"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Parse decodes a JSON document into a Value, keeping object members in
// document order. Object keys are plain string keys.
func Parse(data []byte) (Value, error) {
	// jsonparser stops after the first value and tolerates trailing commas.
	if !json.Valid(data) {
		return Value{}, errors.New("value: invalid JSON document")
	}
	raw, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return Value{}, fmt.Errorf("value: %w", err)
	}
	return parseRaw(raw, dataType)
}

func parseRaw(raw []byte, dataType jsonparser.ValueType) (Value, error) {
	switch dataType {
	case jsonparser.Null:
		return Value{}, nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return Value{}, fmt.Errorf("value: %w", err)
		}
		return NewBool(b), nil
	case jsonparser.Number:
		return NewNumber(string(raw)), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return Value{}, fmt.Errorf("value: %w", err)
		}
		return NewString(s), nil
	case jsonparser.Array:
		elems := []Value{}
		var elemErr error
		_, err := jsonparser.ArrayEach(raw, func(elem []byte, elemType jsonparser.ValueType, _ int, err error) {
			if elemErr != nil {
				return
			}
			if err != nil {
				elemErr = err
				return
			}
			parsed, err := parseRaw(elem, elemType)
			if err != nil {
				elemErr = err
				return
			}
			elems = append(elems, parsed)
		})
		if err == nil {
			err = elemErr
		}
		if err != nil {
			return Value{}, fmt.Errorf("value: %w", err)
		}
		return Value{kind: Array, arr: elems}, nil
	case jsonparser.Object:
		m := orderedmap.New[Key, Value]()
		err := jsonparser.ObjectEach(raw, func(key []byte, member []byte, memberType jsonparser.ValueType, _ int) error {
			parsed, err := parseRaw(member, memberType)
			if err != nil {
				return err
			}
			m.Set(StringKey(string(key)), parsed)
			return nil
		})
		if err != nil {
			return Value{}, fmt.Errorf("value: %w", err)
		}
		return Value{kind: Object, obj: m}, nil
	}
	return Value{}, fmt.Errorf("value: unsupported JSON token %v", dataType)
}

// MarshalJSON encodes v. Symbolic and string keys both encode as their name.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes data into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case Number:
		if !json.Valid([]byte(v.s)) {
			return fmt.Errorf("value: invalid number literal %q", v.s)
		}
		buf.WriteString(v.s)
	case String:
		return writeString(buf, v.s)
	case Array:
		buf.WriteByte('[')
		for i, elem := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := elem.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		first := true
		for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err := writeString(buf, pair.Key.Name); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := pair.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("value: unknown kind %v", v.kind)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	quoted, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(quoted)
	return nil
}

// Text returns the textual form of a scalar as sent in a form body: strings
// verbatim, numbers as their literal, booleans as true/false and null as the
// empty string. Arrays and objects are encoded as JSON text.
func (v Value) Text() (string, error) {
	switch v.kind {
	case Null:
		return "", nil
	case Bool:
		return strconv.FormatBool(v.b), nil
	case Number, String:
		return v.s, nil
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EncodeForm flattens an object Value into form values, one field per member.
func EncodeForm(v Value) (url.Values, error) {
	if v.kind != Object {
		return nil, fmt.Errorf("value: form body must be an object, got %v", v.kind)
	}
	form := url.Values{}
	for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
		text, err := pair.Value.Text()
		if err != nil {
			return nil, err
		}
		form.Add(pair.Key.Name, text)
	}
	return form, nil
}

// Interface converts v into plain Go values: nil, bool, json.Number, string,
// []any and map[string]any. Object member order is lost.
func (v Value) Interface() any {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return json.Number(v.s)
	case String:
		return v.s
	case Array:
		out := make([]any, len(v.arr))
		for i, elem := range v.arr {
			out[i] = elem.Interface()
		}
		return out
	case Object:
		out := make(map[string]any, v.obj.Len())
		for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
			out[pair.Key.Name] = pair.Value.Interface()
		}
		return out
	}
	return nil
}

// FromInterface converts plain Go values into a Value. Maps must have string
// keys; their members are ordered by key since Go maps carry no order.
func FromInterface(in any) (Value, error) {
	switch x := in.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return x, nil
	case bool:
		return NewBool(x), nil
	case string:
		return NewString(x), nil
	case json.Number:
		return NewNumber(string(x)), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return NewNumber(strconv.FormatUint(uint64(x), 10)), nil
	case uint64:
		return NewNumber(strconv.FormatUint(x, 10)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case []any:
		elems := make([]Value, len(x))
		for i, elem := range x {
			converted, err := FromInterface(elem)
			if err != nil {
				return Value{}, err
			}
			elems[i] = converted
		}
		return Value{kind: Array, arr: elems}, nil
	case map[string]any:
		names := make([]string, 0, len(x))
		for name := range x {
			names = append(names, name)
		}
		sort.Strings(names)
		members := make([]Member, 0, len(names))
		for _, name := range names {
			converted, err := FromInterface(x[name])
			if err != nil {
				return Value{}, err
			}
			members = append(members, Member{Key: StringKey(name), Value: converted})
		}
		return NewObject(members...), nil
	case map[string]string:
		generic := make(map[string]any, len(x))
		for name, s := range x {
			generic[name] = s
		}
		return FromInterface(generic)
	}
	return Value{}, fmt.Errorf("value: unsupported type %s", reflect.TypeOf(in))
}
