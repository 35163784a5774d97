// Package value provides an ordered JSON value tree.
//
// A Value is one of Null, Bool, Number, String, Array or Object. The zero
// Value is Null. Objects keep their members in document order and are keyed
// by Key, which distinguishes plain string keys from symbolic keys.
// Values are immutable once built: accessors return copies of their
// children, and the key transforms in package keys return new trees.
package value

import (
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Key is an object member key. Symbol marks the symbolic representation;
// two keys with the same Name but different representations are distinct.
type Key struct {
	Name   string
	Symbol bool
}

// StringKey returns a plain string key.
func StringKey(name string) Key { return Key{Name: name} }

// SymbolKey returns a symbolic key.
func SymbolKey(name string) Key { return Key{Name: name, Symbol: true} }

func (k Key) String() string {
	if k.Symbol {
		return ":" + k.Name
	}
	return k.Name
}

// Member is a single key/value pair of an Object.
type Member struct {
	Key   Key
	Value Value
}

// Value is a JSON value. Use the constructors to build one.
type Value struct {
	kind Kind
	b    bool
	// s holds the decoded string or the number literal
	s   string
	arr []Value
	obj *orderedmap.OrderedMap[Key, Value]
}

// NewNull returns the null Value.
func NewNull() Value { return Value{} }

// NewBool returns a boolean Value.
func NewBool(b bool) Value { return Value{kind: Bool, b: b} }

// NewNumber returns a number Value from a JSON number literal. The literal
// is kept verbatim so integers of any size survive a round trip.
func NewNumber(literal string) Value { return Value{kind: Number, s: literal} }

// Int returns a number Value for an integer.
func Int(i int64) Value { return NewNumber(strconv.FormatInt(i, 10)) }

// Float returns a number Value for a float.
func Float(f float64) Value { return NewNumber(strconv.FormatFloat(f, 'f', -1, 64)) }

// NewString returns a string Value.
func NewString(s string) Value { return Value{kind: String, s: s} }

// NewArray returns an array Value holding elems.
func NewArray(elems ...Value) Value {
	arr := make([]Value, len(elems))
	copy(arr, elems)
	return Value{kind: Array, arr: arr}
}

// NewObject returns an object Value with members in the given order. When a
// key repeats, the later value replaces the earlier one and the member keeps
// the position where the key first appeared.
func NewObject(members ...Member) Value {
	m := orderedmap.New[Key, Value]()
	for _, member := range members {
		m.Set(member.Key, member.Value)
	}
	return Value{kind: Object, obj: m}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == Null }

// Bool returns the boolean held by v.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == Bool
}

// Number returns the number literal held by v.
func (v Value) Number() (string, bool) {
	if v.kind != Number {
		return "", false
	}
	return v.s, true
}

// Int64 returns v as an integer when it holds an integral number literal.
func (v Value) Int64() (int64, bool) {
	if v.kind != Number {
		return 0, false
	}
	i, err := strconv.ParseInt(v.s, 10, 64)
	return i, err == nil
}

// Float64 returns v as a float when it holds a number.
func (v Value) Float64() (float64, bool) {
	if v.kind != Number {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.s, 64)
	return f, err == nil
}

// Str returns the string held by v.
func (v Value) Str() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.s, true
}

// Len returns the number of elements of an array or members of an object,
// and zero for scalars.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		return v.obj.Len()
	}
	return 0
}

// Elems returns a copy of the elements of an array Value, or nil.
func (v Value) Elems() []Value {
	if v.kind != Array {
		return nil
	}
	out := make([]Value, len(v.arr))
	copy(out, v.arr)
	return out
}

// Members returns the members of an object Value in order, or nil.
func (v Value) Members() []Member {
	if v.kind != Object {
		return nil
	}
	out := make([]Member, 0, v.obj.Len())
	for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Member{Key: pair.Key, Value: pair.Value})
	}
	return out
}

// Get returns the member stored under k.
func (v Value) Get(k Key) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	return v.obj.Get(k)
}

// Lookup returns the member named name, trying the string key first and the
// symbolic key second.
func (v Value) Lookup(name string) (Value, bool) {
	if found, ok := v.Get(StringKey(name)); ok {
		return found, true
	}
	return v.Get(SymbolKey(name))
}

// Equal reports whether a and b hold the same tree. Object members must
// match in order, keys must match in representation, and numbers compare
// by literal.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case Number, String:
		return a.s == b.s
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		pa, pb := a.obj.Oldest(), b.obj.Oldest()
		for pa != nil && pb != nil {
			if pa.Key != pb.Key || !Equal(pa.Value, pb.Value) {
				return false
			}
			pa, pb = pa.Next(), pb.Next()
		}
		return true
	}
	return false
}
