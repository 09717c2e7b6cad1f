// Package schema provides type descriptors for guided generation.
//
// A Descriptor exposes the capabilities the client needs from a declared
// input or output shape: a stable name, a JSON Schema document, an instance
// check, and canonical text serialization. The reflective implementation
// derives schemas with github.com/google/jsonschema-go.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
)

// Descriptor describes a data shape used as a guided-generation constraint.
type Descriptor interface {
	// Name returns the shape's name, recorded on user messages built from
	// typed input objects.
	Name() string

	// JSONSchema returns the shape's JSON Schema document.
	JSONSchema() (json.RawMessage, error)

	// Matches reports whether v is an instance of the described shape.
	// Both T and *T are accepted.
	Matches(v any) bool

	// MarshalText serializes an instance to its canonical JSON text form.
	MarshalText(v any) (string, error)
}

// Type is the reflective Descriptor for a Go struct type.
type Type struct {
	name string
	typ  reflect.Type
	doc  json.RawMessage
}

var _ Descriptor = (*Type)(nil)

// For derives a Type descriptor for T. The schema document is resolved
// once, at descriptor construction.
func For[T any]() (*Type, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("deriving schema: %w", err)
	}
	doc, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}

	t := reflect.TypeFor[T]()
	return &Type{
		name: t.Name(),
		typ:  t,
		doc:  doc,
	}, nil
}

// MustFor is For but panics on error. Intended for package-level descriptor
// variables of well-formed types.
func MustFor[T any]() *Type {
	d, err := For[T]()
	if err != nil {
		panic(err)
	}
	return d
}

// Name returns the Go type name of the described shape.
func (t *Type) Name() string {
	return t.name
}

// JSONSchema returns the derived JSON Schema document.
func (t *Type) JSONSchema() (json.RawMessage, error) {
	return t.doc, nil
}

// Matches reports whether v is a value (or pointer to a value) of the
// described type.
func (t *Type) Matches(v any) bool {
	rt := reflect.TypeOf(v)
	if rt == nil {
		return false
	}
	if rt == t.typ {
		return true
	}
	return rt.Kind() == reflect.Pointer && rt.Elem() == t.typ
}

// MarshalText serializes v to its canonical JSON text form.
func (t *Type) MarshalText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serializing %s instance: %w", t.name, err)
	}
	return string(data), nil
}
