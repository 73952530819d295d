package v1thrift

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/honeycombio/zipkinv1/thrift"
	"github.com/honeycombio/zipkinv1/v1span"
)

// ErrValueWidth is returned when a numeric binary annotation's value is not
// exactly as wide as its declared type.
var ErrValueWidth = errors.New("v1thrift: binary annotation value width does not match its type")

// AnnotationType is zipkincore.AnnotationType, the declared encoding of a
// binary annotation's value.
type AnnotationType int32

const (
	AnnotationTypeBool AnnotationType = iota
	AnnotationTypeBytes
	AnnotationTypeI16
	AnnotationTypeI32
	AnnotationTypeI64
	AnnotationTypeDouble
	AnnotationTypeString

	annotationTypeUnset AnnotationType = -1
)

func (t AnnotationType) String() string {
	switch t {
	case AnnotationTypeBool:
		return "BOOL"
	case AnnotationTypeBytes:
		return "BYTES"
	case AnnotationTypeI16:
		return "I16"
	case AnnotationTypeI32:
		return "I32"
	case AnnotationTypeI64:
		return "I64"
	case AnnotationTypeDouble:
		return "DOUBLE"
	case AnnotationTypeString:
		return "STRING"
	default:
		return fmt.Sprintf("AnnotationType(%d)", int32(t))
	}
}

var (
	binaryAnnotationKey   = thrift.Field{Type: thrift.TypeString, ID: 1}
	binaryAnnotationValue = thrift.Field{Type: thrift.TypeString, ID: 2}
	binaryAnnotationType  = thrift.Field{Type: thrift.TypeI32, ID: 3}
	binaryAnnotationHost  = thrift.Field{Type: thrift.TypeStruct, ID: 4}
)

// readBinaryAnnotation decodes one zipkincore.BinaryAnnotation and adds its
// normalized form to the builder. Annotations without a key or a value are
// consumed and dropped.
func readBinaryAnnotation(b *thrift.ReadBuffer, builder *v1span.SpanBuilder) error {
	var (
		key      string
		hasKey   bool
		value    []byte
		hasValue bool
		typ      = annotationTypeUnset
		endpoint *v1span.Endpoint
	)

	for {
		field, err := thrift.ReadField(b)
		if err != nil {
			return err
		}
		if field.IsStop() {
			break
		}

		switch field {
		case binaryAnnotationKey:
			if key, err = b.ReadString(); err != nil {
				return err
			}
			hasKey = true
		case binaryAnnotationValue:
			if value, err = b.ReadBinary(); err != nil {
				return err
			}
			hasValue = true
		case binaryAnnotationType:
			v, err := b.ReadInt32()
			if err != nil {
				return err
			}
			typ = AnnotationType(v)
		case binaryAnnotationHost:
			if endpoint, err = ReadEndpoint(b); err != nil {
				return err
			}
		default:
			if err := thrift.Skip(b, field.Type); err != nil {
				return err
			}
		}
	}

	if !hasKey || !hasValue {
		return nil
	}
	return addBinaryAnnotation(builder, key, value, typ, endpoint)
}

func addBinaryAnnotation(builder *v1span.SpanBuilder, key string, value []byte, typ AnnotationType, endpoint *v1span.Endpoint) error {
	switch typ {
	case AnnotationTypeString:
		builder.AddBinaryAnnotation(key, thrift.DecodeUTF8(value), endpoint)
	case AnnotationTypeI16, AnnotationTypeI32, AnnotationTypeI64, AnnotationTypeDouble:
		s, err := formatNumber(key, typ, value)
		if err != nil {
			return err
		}
		builder.AddBinaryAnnotation(key, s, endpoint)
	case AnnotationTypeBool:
		if isAddress(key, value, endpoint) {
			builder.AddAddress(key, endpoint)
			return nil
		}
		builder.AddBinaryAnnotation(key, formatBool(value), endpoint)
	}
	// BYTES and unknown types have no string form and are dropped.
	return nil
}

func isAddress(key string, value []byte, endpoint *v1span.Endpoint) bool {
	if endpoint == nil || len(value) != 1 || value[0] != 1 {
		return false
	}
	return v1span.IsAddressKey(key)
}

func formatBool(value []byte) string {
	switch string(value) {
	case "\x01", "0x01":
		return "true"
	case "\x00":
		return "false"
	}
	// FIXME: any other payload becomes "", which zipkin has always done but
	// which loses whatever the sender meant. Kept for compatibility.
	return ""
}

func formatNumber(key string, typ AnnotationType, value []byte) (string, error) {
	want := 8
	switch typ {
	case AnnotationTypeI16:
		want = 2
	case AnnotationTypeI32:
		want = 4
	}
	if len(value) != want {
		return "", fmt.Errorf("%w: %q is %s, needs %d bytes, got %d", ErrValueWidth, key, typ, want, len(value))
	}

	switch typ {
	case AnnotationTypeI16:
		return strconv.FormatInt(int64(int16(binary.BigEndian.Uint16(value))), 10), nil
	case AnnotationTypeI32:
		return strconv.FormatInt(int64(int32(binary.BigEndian.Uint32(value))), 10), nil
	case AnnotationTypeI64:
		return strconv.FormatInt(int64(binary.BigEndian.Uint64(value)), 10), nil
	default:
		return formatDouble(math.Float64frombits(binary.BigEndian.Uint64(value))), nil
	}
}

// formatDouble renders v the way zipkin has always rendered double tags:
// shortest digits, plain decimal with at least one fractional digit when
// 1e-3 <= |v| < 1e7, otherwise d.dddE±n.
func formatDouble(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	if abs := math.Abs(v); abs == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(v, 'e', -1, 64), "e")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	n, _ := strconv.Atoi(exp)
	return mantissa + "E" + strconv.Itoa(n)
}
