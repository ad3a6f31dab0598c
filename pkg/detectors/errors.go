package detectors

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyInput is returned when the stream is nil or has no samples.
	ErrEmptyInput = errors.New("empty input stream")

	// ErrInvalidType is returned when a stream element is not a finite real number.
	ErrInvalidType = errors.New("stream must contain only numeric values")

	// ErrDegenerateInitialWindow is returned when the seed window has zero dispersion.
	ErrDegenerateInitialWindow = errors.New("dispersion is zero in the initial window")

	// ErrShortStream is returned when the stream holds fewer samples than the seed window.
	ErrShortStream = errors.New("stream shorter than window size")

	// ErrInvalidConfig is returned for out-of-range detector parameters.
	ErrInvalidConfig = errors.New("invalid detector configuration")
)

// InvalidValueError reports the offending element of a stream.
type InvalidValueError struct {
	Index int
	Value any
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%v: element %d is %T(%v)", ErrInvalidType, e.Index, e.Value, e.Value)
}

// Is reports whether target is ErrInvalidType.
func (e *InvalidValueError) Is(target error) bool {
	return target == ErrInvalidType
}

// CheckFinite returns an *InvalidValueError for the first NaN or infinite element.
func CheckFinite(stream []float64) error {
	for i, v := range stream {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidValueError{Index: i, Value: v}
		}
	}
	return nil
}

// Float64s converts loosely typed values, such as decoded JSON, into a stream.
// Any element that is not a real number fails the whole conversion.
func Float64s(values []any) ([]float64, error) {
	if len(values) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([]float64, len(values))
	for i, v := range values {
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case float32:
			f = float64(n)
		case int:
			f = float64(n)
		case int8:
			f = float64(n)
		case int16:
			f = float64(n)
		case int32:
			f = float64(n)
		case int64:
			f = float64(n)
		case uint:
			f = float64(n)
		case uint8:
			f = float64(n)
		case uint16:
			f = float64(n)
		case uint32:
			f = float64(n)
		case uint64:
			f = float64(n)
		case json.Number:
			parsed, err := n.Float64()
			if err != nil {
				return nil, &InvalidValueError{Index: i, Value: v}
			}
			f = parsed
		default:
			return nil, &InvalidValueError{Index: i, Value: v}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &InvalidValueError{Index: i, Value: v}
		}
		out[i] = f
	}
	return out, nil
}
