package dataadapter

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the type held by a Value.
type Kind uint8

// Supported value kinds.
const (
	KindNull Kind = iota
	KindText
	KindInt
	KindFloat
	KindBool
	KindDate
)

var kindNames = [...]string{"null", "text", "int", "float", "bool", "date"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a typed field value for write operations. The zero Value is NULL.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
}

// Null returns the NULL value.
func Null() Value { return Value{} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating-point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date returns a date/time value.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// ValueOf converts a Go value into a Value. Pointers are dereferenced and nil
// becomes NULL; types outside the supported kinds yield ErrUnsupportedValue.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return Text(x), nil
	case []byte:
		return Text(string(x)), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return uintValue(uint64(x))
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		return uintValue(x)
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case time.Time:
		return Date(x), nil
	case *string:
		return deref(x)
	case *int64:
		return deref(x)
	case *int:
		return deref(x)
	case *float64:
		return deref(x)
	case *bool:
		return deref(x)
	case *time.Time:
		return deref(x)
	}
	return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func uintValue(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, u)
	}
	return Int(int64(u)), nil
}

func deref[T any](p *T) (Value, error) {
	if p == nil {
		return Null(), nil
	}
	return ValueOf(*p)
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Arg returns the value as a database/sql driver argument.
func (v Value) Arg() any {
	switch v.kind {
	case KindText:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindDate:
		return v.t
	default:
		return nil
	}
}

// String returns the text form of the value, matching how it reads back from
// a query. NULL is the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}

// Literal renders the value as an inline standard SQL literal: single quotes in
// text are doubled and backslashes are ordinary characters. Booleans render as
// TRUE/FALSE and NULL as NULL.
func (v Value) Literal() string { return v.literal(false) }

// BackslashLiteral is Literal for engines that also treat a backslash in a
// string literal as an escape character, such as MySQL in its default mode.
// Backslashes are doubled in addition to single quotes.
func (v Value) BackslashLiteral() string { return v.literal(true) }

func (v Value) literal(backslash bool) string {
	switch v.kind {
	case KindText:
		s := v.s
		if backslash {
			s = strings.ReplaceAll(s, `\`, `\\`)
		}
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	case KindInt, KindFloat:
		return v.String()
	case KindBool:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	case KindDate:
		return "'" + v.t.Format(time.RFC3339) + "'"
	default:
		return "NULL"
	}
}

// Values maps field names to the values written by InsertRow and UpdateRow.
type Values map[string]Value

// ValuesOf converts a loosely typed field map, rejecting unsupported types.
func ValuesOf(m map[string]any) (Values, error) {
	out := make(Values, len(m))
	for field, raw := range m {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		out[field] = v
	}
	return out, nil
}

// Fields returns the field names in sorted order.
func (vs Values) Fields() []string {
	fields := make([]string, 0, len(vs))
	for f := range vs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Validate checks that vs is non-empty and every field is an identifier.
func (vs Values) Validate() error {
	if len(vs) == 0 {
		return ErrNoValues
	}
	for f := range vs {
		if err := CheckIdentifier(f); err != nil {
			return err
		}
	}
	return nil
}

var isIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CheckIdentifier returns ErrInvalidIdentifier unless name is a plain or
// schema-qualified SQL identifier.
func CheckIdentifier(name string) error {
	if !isIdentifier.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}
