package dataadapter

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Scalar lists the types GetOneAs and Parse can produce.
type Scalar interface {
	string | int | int32 | int64 | uint64 | float32 | float64 | bool | time.Time
}

// Layouts accepted when parsing time values, in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// GetOneAs runs query through a and converts the first cell of the first row to T.
func GetOneAs[T Scalar](ctx context.Context, a Adapter, query string) (T, error) {
	s, err := a.GetOne(ctx, query)
	if err != nil {
		var zero T
		return zero, err
	}
	return Parse[T](s)
}

// Parse converts text read from a query to T. Failures wrap ErrConversion.
func Parse[T Scalar](s string) (T, error) {
	var out T
	var err error

	switch p := any(&out).(type) {
	case *string:
		*p = s
	case *int:
		*p, err = strconv.Atoi(s)
	case *int32:
		var n int64
		n, err = strconv.ParseInt(s, 10, 32)
		*p = int32(n)
	case *int64:
		*p, err = strconv.ParseInt(s, 10, 64)
	case *uint64:
		*p, err = strconv.ParseUint(s, 10, 64)
	case *float32:
		var f float64
		f, err = strconv.ParseFloat(s, 32)
		*p = float32(f)
	case *float64:
		*p, err = strconv.ParseFloat(s, 64)
	case *bool:
		*p, err = parseBool(s)
	case *time.Time:
		*p, err = parseTime(s)
	}

	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %q to %T: %w", ErrConversion, s, out, err)
	}
	return out, nil
}

// parseBool also accepts the 0/1 integers engines without a boolean type return.
func parseBool(s string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err == nil {
		return b, nil
	}
	if n, nErr := strconv.ParseInt(s, 10, 64); nErr == nil {
		return n != 0, nil
	}
	return false, err
}

func parseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
