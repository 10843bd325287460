package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Member is one key/value pair of an ordered object.
type Member struct {
	Key   string
	Value any
}

// Ordered is implemented by documents whose keys have a meaningful order.
// MarshalOrdered writes their members in exactly that order.
type Ordered interface {
	Members() []Member
}

// MarshalOrdered renders v as compact JSON.
//
// Differences from json.Marshal:
//  1. Ordered values keep their member order; plain maps are key-sorted
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. *regexp.Regexp is written as its pattern string
func MarshalOrdered(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case Ordered:
		return writeOrdered(buf, val.Members())
	case string:
		return writeString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
		return nil
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
		return nil
	case float64:
		return writeFloat(buf, val)
	case *regexp.Regexp:
		if val == nil {
			buf.WriteString("null")
			return nil
		}
		return writeString(buf, val.String())
	case time.Time:
		return writeString(buf, val.UTC().Format(time.RFC3339Nano))
	case map[string]any:
		return writeMap(buf, val)
	case []any:
		return writeArray(buf, len(val), func(i int) any { return val[i] })
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(rv.Int(), 10))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		buf.WriteString(strconv.FormatUint(rv.Uint(), 10))
		return nil
	case reflect.Float32, reflect.Float64:
		return writeFloat(buf, rv.Float())
	case reflect.String:
		return writeString(buf, rv.String())
	case reflect.Slice, reflect.Array:
		return writeArray(buf, rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Pointer:
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return writeValue(buf, rv.Elem().Interface())
	}

	// Anything else falls back to encoding/json and must not be HTML escaped.
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("unsupported value %T: %w", v, err)
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

// writeString writes a JSON string with NFC normalization and no HTML escaping.
func writeString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}

	// json.Encoder adds a trailing newline
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

// writeFloat writes integral floats without a fraction so 20.0 renders as 20.
func writeFloat(buf *bytes.Buffer, f float64) error {
	out, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("float %v: %w", f, err)
	}
	buf.Write(out)
	return nil
}

func writeOrdered(buf *bytes.Buffer, members []Member) error {
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, m.Key); err != nil {
			return fmt.Errorf("key %q: %w", m.Key, err)
		}
		buf.WriteByte(':')
		if err := writeValue(buf, m.Value); err != nil {
			return fmt.Errorf("value for key %q: %w", m.Key, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeMap(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	members := make([]Member, len(keys))
	for i, k := range keys {
		members[i] = Member{Key: k, Value: m[k]}
	}
	return writeOrdered(buf, members)
}

func writeArray(buf *bytes.Buffer, n int, at func(int) any) error {
	buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, at(i)); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}
