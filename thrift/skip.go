package thrift

import "fmt"

// MaxSkipDepth bounds how deeply nested an unknown value may be before Skip
// gives up on it.
const MaxSkipDepth = 64

// Skip consumes one value of type t without interpreting it, descending into
// structs, lists, sets and maps.
func Skip(b *ReadBuffer, t byte) error {
	return skip(b, t, MaxSkipDepth)
}

func skip(b *ReadBuffer, t byte, depth int) error {
	if depth <= 0 {
		return ErrDepthExceeded
	}
	switch t {
	case TypeBool, TypeByte:
		return b.Skip(1)
	case TypeI16:
		return b.Skip(2)
	case TypeI32:
		return b.Skip(4)
	case TypeDouble, TypeI64:
		return b.Skip(8)
	case TypeString:
		n, err := b.ReadLength()
		if err != nil {
			return err
		}
		return b.Skip(n)
	case TypeStruct:
		for {
			field, err := ReadField(b)
			if err != nil {
				return err
			}
			if field.IsStop() {
				return nil
			}
			if err := skip(b, field.Type, depth-1); err != nil {
				return err
			}
		}
	case TypeMap:
		keyType, err := b.ReadByte()
		if err != nil {
			return err
		}
		valueType, err := b.ReadByte()
		if err != nil {
			return err
		}
		n, err := b.ReadLength()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := skip(b, keyType, depth-1); err != nil {
				return err
			}
			if err := skip(b, valueType, depth-1); err != nil {
				return err
			}
		}
		return nil
	case TypeSet, TypeList:
		elemType, err := b.ReadByte()
		if err != nil {
			return err
		}
		n, err := b.ReadLength()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := skip(b, elemType, depth-1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w %d", ErrIllegalType, t)
	}
}
