// Package binding defines the declarative unit a function is built
// from: a name + type + direction tuple with optional free-form extras.
// Concrete binding kinds (HTTP, queue, blob, ...) are constructed
// through the catalog in catalog.go; the rest of the module only ever
// manipulates bindings structurally.
package binding

import (
	"encoding/json"
	"strings"
)

// Direction says which way data flows through a binding.
type Direction string

const (
	In    Direction = "in"
	Out   Direction = "out"
	InOut Direction = "inout"
)

// DataType is an optional hint for how the host should hand payloads over.
type DataType string

const (
	DataString DataType = "string"
	DataBinary DataType = "binary"
	DataStream DataType = "stream"
)

// Binding is the atomic declarative unit. Extra carries type-specific
// fields (path, connection, queueName, ...) the core treats as opaque.
type Binding struct {
	Name      string
	Type      string
	Direction Direction
	DataType  DataType
	Extra     map[string]any
}

// Option mutates a binding under construction.
type Option func(*Binding)

// WithDataType sets the payload hint.
func WithDataType(dt DataType) Option {
	return func(b *Binding) { b.DataType = dt }
}

// WithExtra attaches a type-specific field.
func WithExtra(key string, value any) Option {
	return func(b *Binding) {
		if b.Extra == nil {
			b.Extra = map[string]any{}
		}
		b.Extra[key] = value
	}
}

// Maker builds bindings of one fixed type/direction. Catalog entries are
// all produced through Make/MakeWithDefaults so new kinds never touch
// validation or routing code.
type Maker func(name string, opts ...Option) Binding

// Make returns a Maker for the given type tag and direction.
func Make(typ string, dir Direction) Maker {
	return func(name string, opts ...Option) Binding {
		b := Binding{Name: name, Type: typ, Direction: dir}
		for _, o := range opts {
			o(&b)
		}
		return b
	}
}

// MakeWithDefaults is Make plus default extra fields; explicit options
// override the defaults.
func MakeWithDefaults(typ string, dir Direction, defaults map[string]any) Maker {
	return func(name string, opts ...Option) Binding {
		b := Binding{Name: name, Type: typ, Direction: dir}
		if len(defaults) > 0 {
			b.Extra = make(map[string]any, len(defaults))
			for k, v := range defaults {
				b.Extra[k] = v
			}
		}
		for _, o := range opts {
			o(&b)
		}
		return b
	}
}

// Is reports whether b has the given type tag (case-insensitive) and
// direction. The catalog's type guards are all closures over Is.
func Is(b Binding, typ string, dir Direction) bool {
	return strings.EqualFold(b.Type, typ) && b.Direction == dir
}

// IsTrigger is the single named predicate for trigger inference: the
// type tag ends in "Trigger" (case-insensitive) and data flows in.
// Definitions rely on it so no trigger kind needs hardcoding.
func IsTrigger(b Binding) bool {
	return b.Direction == In && strings.HasSuffix(strings.ToLower(b.Type), "trigger")
}

// MarshalJSON flattens Extra next to the fixed fields, matching the
// declarative on-disk shape hosts expect.
func (b Binding) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(b.Extra)+4)
	for k, v := range b.Extra {
		m[k] = v
	}
	m["name"] = b.Name
	m["type"] = b.Type
	m["direction"] = string(b.Direction)
	if b.DataType != "" {
		m["dataType"] = string(b.DataType)
	}
	return json.Marshal(m)
}

// ExtraString fetches a string-valued extra field.
func (b Binding) ExtraString(key string) string {
	if s, ok := b.Extra[key].(string); ok {
		return s
	}
	return ""
}
