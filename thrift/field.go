package thrift

import "fmt"

// Wire types of the Thrift binary protocol.
const (
	TypeStop   byte = 0
	TypeBool   byte = 2
	TypeByte   byte = 3
	TypeDouble byte = 4
	TypeI16    byte = 6
	TypeI32    byte = 8
	TypeI64    byte = 10
	TypeString byte = 11
	TypeStruct byte = 12
	TypeMap    byte = 13
	TypeSet    byte = 14
	TypeList   byte = 15
)

// Field is the header that precedes every value inside a struct. Two fields
// are the same field only when both type and id match, so Field values can be
// compared with == or used directly as switch cases.
type Field struct {
	Type byte
	ID   int16
}

func (f Field) String() string {
	return fmt.Sprintf("%s(%d)", TypeName(f.Type), f.ID)
}

// IsStop reports whether the field terminates the enclosing struct.
func (f Field) IsStop() bool {
	return f.Type == TypeStop
}

// ReadField reads a field header. A stop field carries no id on the wire and
// is returned with ID 0.
func ReadField(b *ReadBuffer) (Field, error) {
	t, err := b.ReadByte()
	if err != nil {
		return Field{}, err
	}
	if t == TypeStop {
		return Field{Type: TypeStop}, nil
	}
	id, err := b.ReadInt16()
	if err != nil {
		return Field{}, err
	}
	return Field{Type: t, ID: id}, nil
}

// ReadListLength reads a list header and returns the element count. The
// element type is not checked. Every element occupies at least one byte, so a
// count larger than the unread bytes is rejected before any element is read.
func ReadListLength(b *ReadBuffer) (int, error) {
	if _, err := b.ReadByte(); err != nil {
		return 0, err
	}
	return b.ReadLength()
}

// TypeName returns a readable name for a wire type.
func TypeName(t byte) string {
	switch t {
	case TypeStop:
		return "stop"
	case TypeBool:
		return "bool"
	case TypeByte:
		return "byte"
	case TypeDouble:
		return "double"
	case TypeI16:
		return "i16"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeString:
		return "string"
	case TypeStruct:
		return "struct"
	case TypeMap:
		return "map"
	case TypeSet:
		return "set"
	case TypeList:
		return "list"
	default:
		return fmt.Sprintf("type-%d", t)
	}
}
