// ABOUTME: Field-by-field JSON decoding that tolerates values of an unexpected type
// ABOUTME: Numbers are coerced where they fit; anything else is left zero and reported

package stream

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// decodeFields fills the struct v from fields, matching json tag names. It
// returns the paths of values that could not be used.
func decodeFields(fields map[string]json.RawMessage, v reflect.Value, path string) []string {
	var skipped []string
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := jsonName(f)
		if name == "-" {
			continue
		}
		raw, ok := fields[name]
		if !ok {
			continue
		}
		skipped = append(skipped, decodeValue(raw, v.Field(i), joinPath(path, name))...)
	}
	return skipped
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return name
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// decodeValue decodes raw into v, falling back to a per-field decode for
// structs and slices and to numeric coercion for scalars.
func decodeValue(raw json.RawMessage, v reflect.Value, path string) []string {
	if err := json.Unmarshal(raw, v.Addr().Interface()); err == nil {
		return nil
	}
	v.Set(reflect.Zero(v.Type()))

	switch v.Kind() {
	case reflect.Pointer:
		elem := reflect.New(v.Type().Elem())
		skipped := decodeValue(raw, elem.Elem(), path)
		if len(skipped) == 1 && skipped[0] == path {
			return skipped
		}
		v.Set(elem)
		return skipped

	case reflect.Struct:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return []string{path}
		}
		return decodeFields(fields, v, path)

	case reflect.Slice:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return []string{path}
		}
		out := reflect.MakeSlice(v.Type(), len(items), len(items))
		var skipped []string
		for i, item := range items {
			skipped = append(skipped, decodeValue(item, out.Index(i), fmt.Sprintf("%s[%d]", path, i))...)
		}
		v.Set(out)
		return skipped

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f, ok := number(raw); ok {
			v.SetInt(int64(f))
			return nil
		}

	case reflect.Float32, reflect.Float64:
		if f, ok := number(raw); ok {
			v.SetFloat(f)
			return nil
		}

	case reflect.String:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			v.SetString(n.String())
			return nil
		}
	}
	return []string{path}
}

// number reads a JSON number or a string holding one.
func number(raw json.RawMessage) (float64, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}
