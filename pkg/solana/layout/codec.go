package layout

import (
	"fmt"
	"math"

	"github.com/code-payments/lottery-client/pkg/solana/binary"
)

// Values maps field keys to field values.
//
// Decode always produces uint8, uint32 and []byte values. Encode also accepts
// any Go integer type for integer fields, as long as the value fits.
type Values map[string]interface{}

// EncodingError indicates a value could not be written against a schema.
type EncodingError struct {
	Key    string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("layout: cannot encode field %s: %s", e.Key, e.Reason)
}

// DecodingError indicates a buffer could not be read against a schema.
type DecodingError struct {
	Key    string
	Reason string
}

func (e *DecodingError) Error() string {
	if len(e.Key) == 0 {
		return fmt.Sprintf("layout: cannot decode: %s", e.Reason)
	}
	return fmt.Sprintf("layout: cannot decode field %s: %s", e.Key, e.Reason)
}

// Size returns the number of bytes a record described by s occupies.
func Size(s *Schema) int {
	return s.Size()
}

// Encode writes every field of v at its fixed offset in s.
//
// Byte array values must be exactly the declared length. They are never
// truncated or zero padded.
func Encode(s *Schema, v Values) ([]byte, error) {
	data := make([]byte, s.Size())

	var offset int
	for _, f := range s.fields {
		raw, ok := v[f.Key]
		if !ok {
			return nil, &EncodingError{Key: f.Key, Reason: "missing value"}
		}

		switch f.Kind.Type {
		case TypeUint8:
			val, err := toUint(f.Key, raw, math.MaxUint8)
			if err != nil {
				return nil, err
			}
			binary.PutUint8(data[offset:], uint8(val), &offset)
		case TypeUint32:
			val, err := toUint(f.Key, raw, math.MaxUint32)
			if err != nil {
				return nil, err
			}
			binary.PutUint32(data[offset:], uint32(val), &offset)
		case TypeBytes:
			val, ok := raw.([]byte)
			if !ok {
				return nil, &EncodingError{Key: f.Key, Reason: fmt.Sprintf("expected []byte, got %T", raw)}
			}
			if len(val) != f.Kind.Len {
				return nil, &EncodingError{
					Key:    f.Key,
					Reason: fmt.Sprintf("expected %d bytes, got %d", f.Kind.Len, len(val)),
				}
			}
			binary.PutBytes(data[offset:], val, &offset)
		default:
			return nil, &EncodingError{Key: f.Key, Reason: "unsupported kind " + f.Kind.String()}
		}
	}

	return data, nil
}

// Decode reads every field of s from data. Bytes beyond Size(s) are ignored.
func Decode(s *Schema, data []byte) (Values, error) {
	if len(data) < s.Size() {
		return nil, &DecodingError{
			Reason: fmt.Sprintf("expected at least %d bytes, got %d", s.Size(), len(data)),
		}
	}

	v := make(Values, len(s.fields))

	var offset int
	for _, f := range s.fields {
		switch f.Kind.Type {
		case TypeUint8:
			var val uint8
			binary.GetUint8(data[offset:], &val, &offset)
			v[f.Key] = val
		case TypeUint32:
			var val uint32
			binary.GetUint32(data[offset:], &val, &offset)
			v[f.Key] = val
		case TypeBytes:
			var val []byte
			binary.GetBytes(data[offset:], &val, f.Kind.Len, &offset)
			v[f.Key] = val
		default:
			return nil, &DecodingError{Key: f.Key, Reason: "unsupported kind " + f.Kind.String()}
		}
	}

	return v, nil
}

func toUint(key string, raw interface{}, max uint64) (uint64, error) {
	var val uint64
	var negative bool

	switch t := raw.(type) {
	case uint8:
		val = uint64(t)
	case uint16:
		val = uint64(t)
	case uint32:
		val = uint64(t)
	case uint64:
		val = t
	case uint:
		val = uint64(t)
	case int8:
		val, negative = uint64(t), t < 0
	case int16:
		val, negative = uint64(t), t < 0
	case int32:
		val, negative = uint64(t), t < 0
	case int64:
		val, negative = uint64(t), t < 0
	case int:
		val, negative = uint64(t), t < 0
	default:
		return 0, &EncodingError{Key: key, Reason: fmt.Sprintf("expected an integer, got %T", raw)}
	}

	if negative || val > max {
		return 0, &EncodingError{Key: key, Reason: fmt.Sprintf("value %v out of range [0, %d]", raw, max)}
	}
	return val, nil
}
