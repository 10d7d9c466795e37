// Package domain defines the values exchanged through the rendezvous broker.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// FieldKey carries the rendezvous key inside a bundle.
	FieldKey = "key"
	// FieldAddress carries the device address. It is the only field the
	// durable tier keeps.
	FieldAddress = "ipaddr"
)

// Field is one named value in a bundle.
type Field struct {
	Name  string
	Value string
}

// MaxFields caps the number of fields a bundle may carry through the broker.
const MaxFields = 4096

// Bundle is an ordered set of string fields. Setting an existing name
// replaces its value in place. The zero value is an empty bundle.
//
// Copies share storage; build a new bundle with BundleFromFields before
// changing a copy.
type Bundle struct {
	fields []Field
	index  map[string]int
}

// NewBundle builds a bundle from name/value pairs. It panics on an odd
// number of arguments.
func NewBundle(pairs ...string) Bundle {
	if len(pairs)%2 != 0 {
		panic(fmt.Sprintf("domain.NewBundle: odd number of arguments (%d)", len(pairs)))
	}
	var b Bundle
	for i := 0; i < len(pairs); i += 2 {
		b.Set(pairs[i], pairs[i+1])
	}
	return b
}

// BundleFromFields builds a bundle from fields in order.
func BundleFromFields(fields []Field) Bundle {
	var b Bundle
	for _, f := range fields {
		b.Set(f.Name, f.Value)
	}
	return b
}

// Set assigns value to name, keeping the original position of name.
func (b *Bundle) Set(name, value string) {
	if i, ok := b.lookup(name); ok {
		b.fields[i].Value = value
		return
	}
	if b.index == nil {
		b.index = make(map[string]int)
	}
	b.index[name] = len(b.fields)
	b.fields = append(b.fields, Field{Name: name, Value: value})
}

// Get returns the value for name.
func (b Bundle) Get(name string) (string, bool) {
	if i, ok := b.lookup(name); ok {
		return b.fields[i].Value, true
	}
	return "", false
}

// lookup ignores index entries past len(fields), which a copy sharing the
// map may have added.
func (b Bundle) lookup(name string) (int, bool) {
	i, ok := b.index[name]
	if !ok || i >= len(b.fields) || b.fields[i].Name != name {
		return 0, false
	}
	return i, true
}

// Len returns the number of fields.
func (b Bundle) Len() int {
	return len(b.fields)
}

// Fields returns a copy of the fields in order.
func (b Bundle) Fields() []Field {
	out := make([]Field, len(b.fields))
	copy(out, b.fields)
	return out
}

// Equal reports whether both bundles hold the same fields in the same order.
func (b Bundle) Equal(other Bundle) bool {
	if len(b.fields) != len(other.fields) {
		return false
	}
	for i := range b.fields {
		if b.fields[i].Name != other.fields[i].Name || b.fields[i].Value != other.fields[i].Value {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the bundle as a JSON object with fields in order.
func (b Bundle) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range b.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
