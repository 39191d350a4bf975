// Package layout describes fixed-width binary records shared with on-chain
// programs, and encodes/decodes values against those descriptions.
//
// Records are a plain concatenation of their fields in declared order. There
// is no padding or alignment, and multi-byte integers are little-endian, which
// matches how Solana programs pack their account and instruction data.
package layout

import (
	"fmt"

	"github.com/pkg/errors"
)

// Type is the primitive type of a field.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeUint8
	TypeUint32
	TypeBytes
)

// Kind is the type of a field along with its fixed width.
type Kind struct {
	Type Type
	Len  int // only used by TypeBytes
}

var (
	U8  = Kind{Type: TypeUint8}
	U32 = Kind{Type: TypeUint32}
)

// Bytes returns the kind of a fixed-size byte array of length n.
func Bytes(n int) Kind {
	return Kind{Type: TypeBytes, Len: n}
}

// Size is the number of bytes a field of this kind occupies.
func (k Kind) Size() int {
	switch k.Type {
	case TypeUint8:
		return 1
	case TypeUint32:
		return 4
	case TypeBytes:
		return k.Len
	}
	return 0
}

func (k Kind) Validate() error {
	switch k.Type {
	case TypeUint8, TypeUint32:
		return nil
	case TypeBytes:
		if k.Len < 0 {
			return errors.Errorf("invalid byte array length: %d", k.Len)
		}
		return nil
	}
	return errors.Errorf("unknown field type: %d", k.Type)
}

func (k Kind) String() string {
	switch k.Type {
	case TypeUint8:
		return "u8"
	case TypeUint32:
		return "u32"
	case TypeBytes:
		return fmt.Sprintf("[u8;%d]", k.Len)
	}
	return "unknown"
}

// Field is a single named entry in a Schema.
type Field struct {
	Key  string
	Kind Kind
}

// Schema is an ordered, immutable list of fields. Field order defines the
// byte offset of every field and must match the remote program exactly.
type Schema struct {
	fields  []Field
	offsets map[string]int
	size    int
}

// NewSchema validates the provided fields and returns a Schema over them.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields:  make([]Field, len(fields)),
		offsets: make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)

	for i, f := range s.fields {
		if len(f.Key) == 0 {
			return nil, errors.Errorf("field %d has an empty key", i)
		}
		if _, ok := s.offsets[f.Key]; ok {
			return nil, errors.Errorf("duplicate field key: %s", f.Key)
		}
		if err := f.Kind.Validate(); err != nil {
			return nil, errors.Wrapf(err, "invalid kind for field %s", f.Key)
		}

		s.offsets[f.Key] = s.size
		s.size += f.Kind.Size()
	}

	return s, nil
}

// MustNewSchema is NewSchema for package level declarations. It panics on an
// invalid descriptor.
func MustNewSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Size is the total number of bytes of a record described by the schema.
func (s *Schema) Size() int {
	return s.size
}

// Fields returns a copy of the schema's fields, in order.
func (s *Schema) Fields() []Field {
	fields := make([]Field, len(s.fields))
	copy(fields, s.fields)
	return fields
}

// Offset returns the byte offset of the field with the provided key.
func (s *Schema) Offset(key string) (int, bool) {
	offset, ok := s.offsets[key]
	return offset, ok
}

// Extend returns a new schema made of this schema's fields followed by the
// provided ones.
func (s *Schema) Extend(fields ...Field) (*Schema, error) {
	return NewSchema(append(s.Fields(), fields...)...)
}

func (s *Schema) String() string {
	str := "{"
	for i, f := range s.fields {
		if i > 0 {
			str += ", "
		}
		str += f.Key + ": " + f.Kind.String()
	}
	return str + "}"
}
