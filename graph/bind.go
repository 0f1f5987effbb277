package graph

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/wudi/colorkit/option"
	"github.com/wudi/colorkit/value"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// BindOptions fills the fields of the struct dst points to from set and
// validates the result. Fields name their option with an `option` tag
// holding a match pattern; absent options leave the field untouched.
//
//	type scaleOptions struct {
//		Factor float64 `option:"scale/factor" validate:"gt=0"`
//	}
func BindOptions(set *option.Set, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("graph: bind target must be a struct pointer, got %T", dst)
	}
	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		path, ok := rt.Field(i).Tag.Lookup("option")
		if !ok {
			continue
		}
		v, err := set.FindValue(path)
		if errors.Is(err, option.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		err = assign(rv.Field(i), &v)
		value.Clear(&v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidOptions, path, err)
		}
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

func assign(f reflect.Value, v *value.Value) error {
	switch f.Kind() {
	case reflect.String:
		s, ok := v.StringAt(0)
		if !ok {
			return option.ErrWrongKind
		}
		f.SetString(s)
	case reflect.Int, reflect.Int32, reflect.Int64:
		i, ok := v.IntAt(0)
		if !ok {
			return option.ErrWrongKind
		}
		f.SetInt(int64(i))
	case reflect.Float64, reflect.Float32:
		d, ok := v.DoubleAt(0)
		if !ok {
			return option.ErrWrongKind
		}
		f.SetFloat(d)
	case reflect.Bool:
		i, ok := v.IntAt(0)
		if !ok {
			return option.ErrWrongKind
		}
		f.SetBool(i != 0)
	case reflect.Slice:
		switch f.Type().Elem().Kind() {
		case reflect.Float64:
			out := make([]float64, v.Len())
			for i := range out {
				d, ok := v.DoubleAt(i)
				if !ok {
					return option.ErrWrongKind
				}
				out[i] = d
			}
			f.Set(reflect.ValueOf(out))
		case reflect.String:
			out := make([]string, v.Len())
			for i := range out {
				s, ok := v.StringAt(i)
				if !ok {
					return option.ErrWrongKind
				}
				out[i] = s
			}
			f.Set(reflect.ValueOf(out))
		default:
			return fmt.Errorf("unsupported field type %s", f.Type())
		}
	default:
		return fmt.Errorf("unsupported field type %s", f.Type())
	}
	return nil
}
