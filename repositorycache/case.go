package repositorycache

import (
	"reflect"
	"strings"
	"unicode"
)

// namespaceFor derives the key prefix from the record type: *model.User
// becomes "user", Page[model.Trip] becomes "page".
func namespaceFor[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name := namespaceName(t.Name()); name != "" {
		return name
	}
	return "record"
}

// namespaceName snake-cases a Go type name. Type arguments are dropped and
// any other punctuation collapses into one underscore, so the result never
// holds the ':' that separates namespace and method in a key.
func namespaceName(typeName string) string {
	if i := strings.IndexByte(typeName, '['); i >= 0 {
		typeName = typeName[:i]
	}

	runes := []rune(typeName)
	var b strings.Builder
	pending := false
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pending = b.Len() > 0
			continue
		}
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			acronymEnd := unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || acronymEnd {
				pending = b.Len() > 0
			}
		}
		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
