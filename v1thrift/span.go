// Package v1thrift decodes Zipkin v1 spans encoded as zipkincore.Span
// structs with the Thrift binary protocol.
//
// Decoding is forward and backward compatible by field: a field whose type
// and id do not match one of the known fields is skipped by its wire type,
// and annotations missing required fields are dropped rather than failing
// the span. Only a malformed buffer fails a decode.
package v1thrift

import (
	"errors"
	"fmt"

	"github.com/honeycombio/zipkinv1/thrift"
	"github.com/honeycombio/zipkinv1/v1span"
)

var (
	ErrEmptyPayload  = errors.New("v1thrift: empty payload")
	ErrTrailingBytes = errors.New("v1thrift: unread bytes after payload")
)

var (
	spanTraceID           = thrift.Field{Type: thrift.TypeI64, ID: 1}
	spanName              = thrift.Field{Type: thrift.TypeString, ID: 3}
	spanID                = thrift.Field{Type: thrift.TypeI64, ID: 4}
	spanParentID          = thrift.Field{Type: thrift.TypeI64, ID: 5}
	spanAnnotations       = thrift.Field{Type: thrift.TypeList, ID: 6}
	spanBinaryAnnotations = thrift.Field{Type: thrift.TypeList, ID: 8}
	spanDebug             = thrift.Field{Type: thrift.TypeBool, ID: 9}
	spanTimestamp         = thrift.Field{Type: thrift.TypeI64, ID: 10}
	spanDuration          = thrift.Field{Type: thrift.TypeI64, ID: 11}
	spanTraceIDHigh       = thrift.Field{Type: thrift.TypeI64, ID: 12}
)

// SpanReader decodes spans one at a time, reusing a single builder. The zero
// value is ready to use. A SpanReader must not be shared between goroutines;
// use one per goroutine instead.
type SpanReader struct {
	builder *v1span.SpanBuilder
}

func NewSpanReader() *SpanReader {
	return &SpanReader{builder: v1span.NewSpanBuilder()}
}

// Reset discards any state left over from a previous read.
func (r *SpanReader) Reset() {
	if r.builder != nil {
		r.builder.Clear()
	}
}

// Read consumes exactly one span struct from b.
func (r *SpanReader) Read(b *thrift.ReadBuffer) (*v1span.Span, error) {
	if r.builder == nil {
		r.builder = v1span.NewSpanBuilder()
	} else {
		r.builder.Clear()
	}
	builder := r.builder

	for {
		field, err := thrift.ReadField(b)
		if err != nil {
			return nil, err
		}
		if field.IsStop() {
			break
		}

		switch field {
		case spanTraceIDHigh:
			v, err := b.ReadInt64()
			if err != nil {
				return nil, err
			}
			builder.TraceIDHigh(uint64(v))
		case spanTraceID:
			v, err := b.ReadInt64()
			if err != nil {
				return nil, err
			}
			builder.TraceID(uint64(v))
		case spanName:
			v, err := b.ReadString()
			if err != nil {
				return nil, err
			}
			builder.Name(v)
		case spanID:
			v, err := b.ReadInt64()
			if err != nil {
				return nil, err
			}
			builder.ID(uint64(v))
		case spanParentID:
			v, err := b.ReadInt64()
			if err != nil {
				return nil, err
			}
			builder.ParentID(uint64(v))
		case spanAnnotations:
			n, err := thrift.ReadListLength(b)
			if err != nil {
				return nil, err
			}
			for i := 0; i < n; i++ {
				if err := readAnnotation(b, builder); err != nil {
					return nil, err
				}
			}
		case spanBinaryAnnotations:
			n, err := thrift.ReadListLength(b)
			if err != nil {
				return nil, err
			}
			for i := 0; i < n; i++ {
				if err := readBinaryAnnotation(b, builder); err != nil {
					return nil, err
				}
			}
		case spanDebug:
			v, err := b.ReadByte()
			if err != nil {
				return nil, err
			}
			builder.Debug(v == 1)
		case spanTimestamp:
			v, err := b.ReadInt64()
			if err != nil {
				return nil, err
			}
			builder.Timestamp(v)
		case spanDuration:
			v, err := b.ReadInt64()
			if err != nil {
				return nil, err
			}
			builder.Duration(v)
		default:
			if err := thrift.Skip(b, field.Type); err != nil {
				return nil, err
			}
		}
	}

	return builder.Build(), nil
}

// Decode decodes data holding exactly one span struct. Bytes left over after
// the struct's stop field are an error.
func (r *SpanReader) Decode(data []byte) (*v1span.Span, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	b := thrift.NewReadBuffer(data)
	span, err := r.Read(b)
	if err != nil {
		return nil, err
	}
	if err := checkDrained(b); err != nil {
		return nil, err
	}
	return span, nil
}

func checkDrained(b *thrift.ReadBuffer) error {
	if b.Remaining() > 0 {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, b.Remaining())
	}
	return nil
}

// Decode decodes data holding exactly one span struct.
func Decode(data []byte) (*v1span.Span, error) {
	var r SpanReader
	return r.Decode(data)
}

// DecodeSpans decodes a Zipkin v1 thrift payload, which is either a list of
// span structs or a single bare span struct, told apart by the first byte: a
// list of structs starts with the struct type. A bare span whose first field
// happens to be struct-typed is therefore read as a list and usually fails;
// zipkin collectors have the same limitation. Bytes left after the payload
// are an error.
func DecodeSpans(data []byte) ([]*v1span.Span, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	var r SpanReader
	b := thrift.NewReadBuffer(data)

	if data[0] != thrift.TypeStruct {
		span, err := r.Read(b)
		if err != nil {
			return nil, err
		}
		if err := checkDrained(b); err != nil {
			return nil, err
		}
		return []*v1span.Span{span}, nil
	}

	n, err := thrift.ReadListLength(b)
	if err != nil {
		return nil, err
	}
	spans := make([]*v1span.Span, 0, n)
	for i := 0; i < n; i++ {
		span, err := r.Read(b)
		if err != nil {
			return nil, fmt.Errorf("v1thrift: span %d: %w", i, err)
		}
		spans = append(spans, span)
	}
	if err := checkDrained(b); err != nil {
		return nil, err
	}
	return spans, nil
}
