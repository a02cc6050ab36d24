package signalstore

import (
	"encoding/json"
	"strconv"

	"github.com/dave-morgan/signalkv/errors"
)

// Codec converts cell values to and from the text form stored on the engine
// boundary. Each typed accessor carries an explicit codec rather than
// branching on runtime types; callers may substitute their own.
type Codec[T any] struct {
	Encode func(T) (string, error)
	Decode func(string) (T, error)
}

// StringCodec passes values through unchanged.
func StringCodec() Codec[string] {
	return Codec[string]{
		Encode: func(v string) (string, error) { return v, nil },
		Decode: func(s string) (string, error) { return s, nil },
	}
}

// IntCodec round-trips integers through decimal text.
func IntCodec() Codec[int64] {
	return Codec[int64]{
		Encode: func(v int64) (string, error) {
			return strconv.FormatInt(v, 10), nil
		},
		Decode: func(s string) (int64, error) {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return 0, errors.WrapInvalid(errors.ErrParsingFailed, "IntCodec", "Decode", "parse decimal")
			}
			return v, nil
		},
	}
}

// FloatCodec round-trips floats through decimal text.
func FloatCodec() Codec[float64] {
	return Codec[float64]{
		Encode: func(v float64) (string, error) {
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		},
		Decode: func(s string) (float64, error) {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, errors.WrapInvalid(errors.ErrParsingFailed, "FloatCodec", "Decode", "parse decimal")
			}
			return v, nil
		},
	}
}

// BoolCodec round-trips booleans through the literal text "true"/"false".
// Any other stored text is a decode failure.
func BoolCodec() Codec[bool] {
	return Codec[bool]{
		Encode: func(v bool) (string, error) {
			if v {
				return "true", nil
			}
			return "false", nil
		},
		Decode: func(s string) (bool, error) {
			switch s {
			case "true":
				return true, nil
			case "false":
				return false, nil
			default:
				return false, errors.WrapInvalid(errors.ErrParsingFailed, "BoolCodec", "Decode", "parse boolean literal")
			}
		},
	}
}

// BytesCodec stores raw bytes. Go strings are binary-safe, so the round trip
// is lossless.
func BytesCodec() Codec[[]byte] {
	return Codec[[]byte]{
		Encode: func(v []byte) (string, error) { return string(v), nil },
		Decode: func(s string) ([]byte, error) { return []byte(s), nil },
	}
}

// JSONCodec round-trips arbitrary structured values through a JSON encoding.
func JSONCodec[T any]() Codec[T] {
	return Codec[T]{
		Encode: func(v T) (string, error) {
			data, err := json.Marshal(v)
			if err != nil {
				return "", errors.WrapInvalid(err, "JSONCodec", "Encode", "marshal value")
			}
			return string(data), nil
		},
		Decode: func(s string) (T, error) {
			var v T
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				return v, errors.WrapInvalid(errors.ErrParsingFailed, "JSONCodec", "Decode", "unmarshal value")
			}
			return v, nil
		},
	}
}
