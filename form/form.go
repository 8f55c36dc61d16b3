// Package form encodes parameter structs into the url-encoded shape the
// Fluxpay gateway expects. Field names come from `form` struct tags; zero
// values are left out entirely so a partial update only touches the fields
// the caller set.
package form

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
)

const tagName = "form"

// Encode walks params and returns the flattened url.Values. Nested structs
// and maps use bracket notation (cart[total], metadata[order]), slices are
// indexed (line_items[0][amount]). Anonymous embedded structs share their
// parent's namespace.
func Encode(params interface{}) (url.Values, error) {
	values := url.Values{}
	if params == nil {
		return values, nil
	}

	v := reflect.ValueOf(params)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return values, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("form: cannot encode %s, need a struct", v.Kind())
	}

	if err := encodeStruct(values, v, ""); err != nil {
		return nil, err
	}
	return values, nil
}

func encodeStruct(values url.Values, v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			// unexported
			continue
		}

		tag := field.Tag.Get(tagName)
		if tag == "-" {
			continue
		}

		fv := v.Field(i)

		if field.Anonymous && tag == "" {
			for fv.Kind() == reflect.Ptr {
				if fv.IsNil() {
					break
				}
				fv = fv.Elem()
			}
			if fv.Kind() == reflect.Struct {
				if err := encodeStruct(values, fv, prefix); err != nil {
					return err
				}
			}
			continue
		}

		if tag == "" {
			continue
		}

		if err := encodeValue(values, fv, fieldName(prefix, tag)); err != nil {
			return err
		}
	}
	return nil
}

func fieldName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "[" + name + "]"
}

func encodeValue(values url.Values, v reflect.Value, name string) error {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return encodeValue(values, v.Elem(), name)

	case reflect.String:
		if s := v.String(); s != "" {
			values.Set(name, s)
		}

	case reflect.Bool:
		if v.Bool() {
			values.Set(name, "true")
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n := v.Int(); n != 0 {
			values.Set(name, strconv.FormatInt(n, 10))
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n := v.Uint(); n != 0 {
			values.Set(name, strconv.FormatUint(n, 10))
		}

	case reflect.Float32, reflect.Float64:
		if f := v.Float(); f != 0 {
			values.Set(name, strconv.FormatFloat(f, 'f', -1, 64))
		}

	case reflect.Map:
		for _, key := range v.MapKeys() {
			child := fieldName(name, fmt.Sprintf("%v", key.Interface()))
			if err := encodeValue(values, v.MapIndex(key), child); err != nil {
				return err
			}
		}

	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			child := name + "[" + strconv.Itoa(i) + "]"
			if err := encodeValue(values, v.Index(i), child); err != nil {
				return err
			}
		}

	case reflect.Struct:
		return encodeStruct(values, v, name)

	default:
		return fmt.Errorf("form: unsupported kind %s for field %s", v.Kind(), name)
	}
	return nil
}
