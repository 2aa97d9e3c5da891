package convert

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/vmihailenco/msgpack/v5"
)

type pair struct {
	source, target reflect.Type
}

type enum struct {
	byName map[string]any
	name   func(any) string
}

// Converter converts property values to storable values and raw column
// values back to property types. Custom conversions registered for a
// (source, target) pair are tried before the defaults.
//
// Registration is not synchronized; register everything before the
// converter is shared.
type Converter struct {
	funcs    map[pair]func(any) (any, error)
	writes   map[reflect.Type]reflect.Type
	enums    map[reflect.Type]*enum
	pgArrays bool
}

// Option configures a Converter.
type Option func(*Converter)

// PostgresArrays writes slices (other than []byte) as PostgreSQL arrays and
// reads array columns back into slices, using lib/pq.
func PostgresArrays() Option {
	return func(c *Converter) {
		c.pgArrays = true
	}
}

// New returns a Converter with the default conversions.
func New(opts ...Option) *Converter {
	c := &Converter{
		funcs:  make(map[pair]func(any) (any, error)),
		writes: make(map[reflect.Type]reflect.Type),
		enums:  make(map[reflect.Type]*enum),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterFunc registers a conversion from S to T. Conversions whose source
// is a type drivers return (int64, float64, bool, []byte, string,
// time.Time) are only used for reads; the others convert values of type S
// on writes, the first registration for S winning.
func RegisterFunc[S, T any](c *Converter, fn func(S) (T, error)) {
	s, t := reflect.TypeFor[S](), reflect.TypeFor[T]()
	c.funcs[pair{s, t}] = func(v any) (any, error) {
		return fn(v.(S))
	}
	if _, ok := c.writes[s]; !ok && !storeTypes[s] {
		c.writes[s] = t
	}
}

var storeTypes = map[reflect.Type]bool{
	reflect.TypeFor[int64]():     true,
	reflect.TypeFor[float64]():   true,
	reflect.TypeFor[bool]():      true,
	reflect.TypeFor[[]byte]():    true,
	reflect.TypeFor[string]():    true,
	reflect.TypeFor[time.Time](): true,
}

// RegisterEnum stores values of E by name. Reading an unknown name fails.
func RegisterEnum[E interface {
	comparable
	fmt.Stringer
}](c *Converter, values ...E) {
	en := &enum{
		byName: make(map[string]any, len(values)),
		name:   func(v any) string { return v.(E).String() },
	}
	for _, v := range values {
		en.byName[v.String()] = v
	}
	c.enums[reflect.TypeFor[E]()] = en
}

// RegisterMsgpack stores values of T as msgpack encoded bytes.
func RegisterMsgpack[T any](c *Converter) {
	RegisterFunc(c, func(v T) ([]byte, error) {
		return msgpack.Marshal(v)
	})
	RegisterFunc(c, func(b []byte) (T, error) {
		var v T
		err := msgpack.Unmarshal(b, &v)
		return v, err
	})
}

var (
	timeType    = reflect.TypeFor[time.Time]()
	bytesType   = reflect.TypeFor[[]byte]()
	scannerType = reflect.TypeFor[sql.Scanner]()
	valuerType  = reflect.TypeFor[driver.Valuer]()
)

// Write converts a property value to a value the driver can store.
func (c *Converter) Write(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	t := rv.Type()
	if target, ok := c.writes[t]; ok {
		return c.funcs[pair{t, target}](v)
	}
	if en, ok := c.enums[t]; ok {
		return en.name(v), nil
	}
	if t.Implements(valuerType) {
		if t.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		return v, nil
	}
	switch t.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return c.Write(rv.Elem().Interface())
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return rv.Bytes(), nil
		}
		if c.pgArrays {
			return pq.Array(v), nil
		}
	}
	if t == timeType {
		return v, nil
	}
	return nil, &Error{Value: v, Target: "storable value"}
}

var (
	stringType  = reflect.TypeFor[string]()
	int64Type   = reflect.TypeFor[int64]()
	float64Type = reflect.TypeFor[float64]()
	boolType    = reflect.TypeFor[bool]()
)

// StoreType returns the type of the values Write produces for property
// values of type t, or nil when Write cannot store them. driver.Valuer
// types are assumed to produce strings. Slices written as PostgreSQL
// arrays report their own type.
func (c *Converter) StoreType(t reflect.Type) reflect.Type {
	if target, ok := c.writes[t]; ok {
		return target
	}
	if _, ok := c.enums[t]; ok {
		return stringType
	}
	if t.Implements(valuerType) {
		return stringType
	}
	if t == timeType {
		return timeType
	}
	switch t.Kind() {
	case reflect.Pointer:
		return c.StoreType(t.Elem())
	case reflect.Bool:
		return boolType
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64Type
	case reflect.Float32, reflect.Float64:
		return float64Type
	case reflect.String:
		return stringType
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return bytesType
		}
		if c.pgArrays {
			return t
		}
	}
	return nil
}

// Read converts a raw column value to the target property type. NULL reads
// as the zero value of target.
func (c *Converter) Read(raw any, target reflect.Type) (any, error) {
	if raw == nil {
		return reflect.Zero(target).Interface(), nil
	}
	src := reflect.TypeOf(raw)
	if fn, ok := c.funcs[pair{src, target}]; ok {
		return fn(raw)
	}
	if target.Kind() == reflect.Pointer {
		v, err := c.Read(raw, target.Elem())
		if err != nil {
			return nil, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(reflect.ValueOf(v))
		return ptr.Interface(), nil
	}
	if en, ok := c.enums[target]; ok {
		name, err := asString(raw)
		if err != nil {
			return nil, &Error{Value: raw, Target: target.String(), Err: err}
		}
		v, ok := en.byName[name]
		if !ok {
			return nil, &Error{Value: raw, Target: target.String(), Err: fmt.Errorf("unknown name %q", name)}
		}
		return v, nil
	}
	if target.Kind() == reflect.Interface {
		return raw, nil
	}
	if reflect.PointerTo(target).Implements(scannerType) {
		ptr := reflect.New(target)
		if err := ptr.Interface().(sql.Scanner).Scan(raw); err != nil {
			return nil, &Error{Value: raw, Target: target.String(), Err: err}
		}
		return ptr.Elem().Interface(), nil
	}
	if c.pgArrays && target.Kind() == reflect.Slice && target != bytesType {
		ptr := reflect.New(target)
		if err := pq.Array(ptr.Interface()).Scan(raw); err != nil {
			return nil, &Error{Value: raw, Target: target.String(), Err: err}
		}
		return ptr.Elem().Interface(), nil
	}
	v, err := convertDefault(raw, target)
	if err != nil {
		return nil, &Error{Value: raw, Target: target.String(), Err: err}
	}
	return v, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func convertDefault(raw any, target reflect.Type) (any, error) {
	rv := reflect.ValueOf(raw)
	if target == timeType {
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string, []byte:
			s, _ := asString(v)
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t, nil
				}
			}
			return nil, fmt.Errorf("unrecognized time format %q", s)
		case int64:
			return time.Unix(v, 0).UTC(), nil
		}
	}
	if rv.Type() == target {
		return raw, nil
	}
	switch target.Kind() {
	case reflect.String:
		switch v := raw.(type) {
		case []byte:
			return reflect.ValueOf(string(v)).Convert(target).Interface(), nil
		case int64:
			return reflect.ValueOf(strconv.FormatInt(v, 10)).Convert(target).Interface(), nil
		}
	case reflect.Slice:
		if target.Elem().Kind() == reflect.Uint8 {
			if s, ok := raw.(string); ok {
				return reflect.ValueOf([]byte(s)).Convert(target).Interface(), nil
			}
		}
	case reflect.Bool:
		switch v := raw.(type) {
		case int64:
			return reflect.ValueOf(v != 0).Convert(target).Interface(), nil
		case string, []byte:
			s, _ := asString(v)
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			return reflect.ValueOf(b).Convert(target).Interface(), nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if s, err := asString(raw); err == nil {
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return nil, err
			}
			return reflect.ValueOf(n).Convert(target).Interface(), nil
		}
		if isNumber(rv.Kind()) {
			return rv.Convert(target).Interface(), nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if s, err := asString(raw); err == nil {
			n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return nil, err
			}
			return reflect.ValueOf(n).Convert(target).Interface(), nil
		}
		if isNumber(rv.Kind()) {
			return rv.Convert(target).Interface(), nil
		}
	case reflect.Float32, reflect.Float64:
		if s, err := asString(raw); err == nil {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, err
			}
			return reflect.ValueOf(f).Convert(target).Interface(), nil
		}
		if isNumber(rv.Kind()) {
			return rv.Convert(target).Interface(), nil
		}
	}
	if rv.Type().ConvertibleTo(target) && rv.Kind() == target.Kind() {
		return rv.Convert(target).Interface(), nil
	}
	return nil, fmt.Errorf("cannot convert %T", raw)
}

func isNumber(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

func asString(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("%T is not a string", v)
	}
}
