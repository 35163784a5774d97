// Package keys rewrites the member keys of a value tree.
//
// Two independent transforms are provided. Casing converts keys between
// camelCase and snake_case; representation converts string keys into
// symbolic keys. Both recurse through every object and array and never
// touch scalar values. Inbound runs casing before representation, so a
// snake_case key is what ends up symbolized.
package keys

import (
	"github.com/stoewer/go-strcase"

	"github.com/jamesprial/go-fitbyte/pkg/value"
)

// Options selects the inbound transforms.
type Options struct {
	SnakeCase     bool
	SymbolizeKeys bool
}

// Rename returns a copy of v with fn applied to every object key at every
// depth. When fn maps two keys of one object to the same key, the later
// member's value wins and keeps the earlier member's position.
func Rename(v value.Value, fn func(value.Key) value.Key) value.Value {
	switch v.Kind() {
	case value.Array:
		elems := v.Elems()
		for i := range elems {
			elems[i] = Rename(elems[i], fn)
		}
		return value.NewArray(elems...)
	case value.Object:
		members := v.Members()
		for i := range members {
			members[i].Key = fn(members[i].Key)
			members[i].Value = Rename(members[i].Value, fn)
		}
		return value.NewObject(members...)
	}
	return v
}

// ToSnakeCase rewrites every key to snake_case. Keys already in snake_case
// are unchanged.
func ToSnakeCase(v value.Value) value.Value {
	return Rename(v, func(k value.Key) value.Key {
		k.Name = strcase.SnakeCase(k.Name)
		return k
	})
}

// ToCamelCase rewrites every key to camelCase with a lowercase first
// segment. Keys already in camelCase are unchanged.
func ToCamelCase(v value.Value) value.Value {
	return Rename(v, func(k value.Key) value.Key {
		k.Name = strcase.LowerCamelCase(k.Name)
		return k
	})
}

// SymbolizeKeys turns every string key into a symbolic key.
func SymbolizeKeys(v value.Value) value.Value {
	return Rename(v, func(k value.Key) value.Key {
		k.Symbol = true
		return k
	})
}

// Outbound prepares a request body: keys are camelCased. Key representation
// is left alone since the body is serialized to text.
func Outbound(v value.Value) value.Value {
	return ToCamelCase(v)
}

// Inbound applies the transforms selected by opts to a response body. With
// both options off the tree is returned as is.
func Inbound(v value.Value, opts Options) value.Value {
	if opts.SnakeCase {
		v = ToSnakeCase(v)
	}
	if opts.SymbolizeKeys {
		v = SymbolizeKeys(v)
	}
	return v
}
