package cache

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

// defaultKeySerializer implements KeySerializer using reflection.
// Maps are written with sorted keys and struct fields in name order, so two
// values holding the same data always produce the same key. Text inside maps,
// structs and sequences is always quoted; a top level argument is quoted only
// when it could be mistaken for a separator or a literal.
type defaultKeySerializer struct {
	omitEmpty bool
}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey builds a cache key from method name and args.
func (s *defaultKeySerializer) SerializeKey(method string, args ...any) string {
	if len(args) == 0 {
		return method
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, arg := range args {
		parts = append(parts, s.serialize(arg))
	}
	return strings.Join(parts, KeySeparator)
}

// filterSerializer drops nil map values and zero struct fields: an unset
// filter option is indistinguishable from an absent one.
var filterSerializer = &defaultKeySerializer{omitEmpty: true}

// GenerateKey returns the canonical cache key for a structured filter value
// under prefix. Filters holding the same options produce the same key
// regardless of the order in which the options were set.
func GenerateKey(prefix string, filters any) string {
	if filters == nil {
		return prefix
	}
	return prefix + KeySeparator + filterSerializer.serialize(filters)
}

func (s *defaultKeySerializer) serialize(v any) string {
	var b strings.Builder
	s.write(&b, reflect.ValueOf(v), false)
	return b.String()
}

// writeText writes string data. Nested text is always quoted so separators
// inside values cannot shift the structure of the key.
func writeText(b *strings.Builder, text string, nested bool) {
	if nested || !plainToken(text) {
		b.WriteString(strconv.Quote(text))
		return
	}
	b.WriteString(text)
}

// plainToken reports whether text can stand unquoted between "::"
// separators without reading as a nil, a composite or a quoted value.
func plainToken(text string) bool {
	return text != "" && text != "nil" && !strings.ContainsAny(text, `:,={}[]"`)
}

func (s *defaultKeySerializer) write(b *strings.Builder, rv reflect.Value, nested bool) {
	if !rv.IsValid() {
		b.WriteString("nil")
		return
	}

	// ids and timestamps carry their own canonical text form
	if rv.Type().Implements(textMarshalerType) && rv.CanInterface() {
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			b.WriteString("nil")
			return
		}
		if text, err := rv.Interface().(encoding.TextMarshaler).MarshalText(); err == nil {
			writeText(b, string(text), nested)
			return
		}
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		s.write(b, rv.Elem(), nested)

	case reflect.Func:
		// function pointers are stable only within a process
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		fmt.Fprintf(b, "func:%#x", rv.Pointer())

	case reflect.Chan:
		fmt.Fprintf(b, "chan:%#x", rv.Pointer())

	case reflect.Slice:
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		s.writeSequence(b, rv)

	case reflect.Array:
		s.writeSequence(b, rv)

	case reflect.Map:
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		s.writeMap(b, rv)

	case reflect.Struct:
		s.writeStruct(b, rv)

	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		fmt.Fprintf(b, "%v", rv.Interface())

	case reflect.String:
		writeText(b, rv.String(), nested)

	default:
		s.writeJSON(b, rv)
	}
}

func (s *defaultKeySerializer) writeSequence(b *strings.Builder, rv reflect.Value) {
	b.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		s.write(b, rv.Index(i), true)
	}
	b.WriteByte(']')
}

type keyValue struct {
	key   string
	value reflect.Value
}

func (s *defaultKeySerializer) writeMap(b *strings.Builder, rv reflect.Value) {
	pairs := make([]keyValue, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		value := iter.Value()
		if s.omitEmpty && isNil(value) {
			continue
		}
		var key strings.Builder
		s.write(&key, iter.Key(), true)
		pairs = append(pairs, keyValue{key: key.String(), value: value})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	b.WriteByte('{')
	for i, pair := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(pair.key)
		b.WriteByte('=')
		s.write(b, pair.value, true)
	}
	b.WriteByte('}')
}

func (s *defaultKeySerializer) writeStruct(b *strings.Builder, rv reflect.Value) {
	rt := rv.Type()
	pairs := make([]keyValue, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		value := rv.Field(i)
		if s.omitEmpty && isEmpty(value) {
			continue
		}
		pairs = append(pairs, keyValue{key: field.Name, value: value})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	b.WriteByte('{')
	for i, pair := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(pair.key)
		b.WriteByte(':')
		s.write(b, pair.value, true)
	}
	b.WriteByte('}')
}

func (s *defaultKeySerializer) writeJSON(b *strings.Builder, rv reflect.Value) {
	if !rv.CanInterface() {
		fmt.Fprintf(b, "fallback:%s", rv.Type())
		return
	}
	data, err := json.Marshal(rv.Interface())
	if err != nil {
		fmt.Fprintf(b, "fallback:%s", rv.Type())
		return
	}
	b.WriteString("json:")
	b.Write(data)
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return !v.IsValid()
}

func isEmpty(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.IsNil() || v.Len() == 0
	}
	return v.IsZero()
}
