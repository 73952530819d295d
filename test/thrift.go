package test

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/honeycombio/zipkinv1/thrift"
)

// ThriftWriter appends TBinaryProtocol values to a buffer. It exists to build
// fixtures for decoder tests and does no validation of its own, so tests can
// also produce malformed payloads with it.
type ThriftWriter struct {
	buf bytes.Buffer
}

func (w *ThriftWriter) Bytes() []byte {
	return w.buf.Bytes()
}

func (w *ThriftWriter) Field(t byte, id int16) *ThriftWriter {
	w.buf.WriteByte(t)
	return w.I16(id)
}

func (w *ThriftWriter) Stop() *ThriftWriter {
	w.buf.WriteByte(thrift.TypeStop)
	return w
}

func (w *ThriftWriter) Byte(v byte) *ThriftWriter {
	w.buf.WriteByte(v)
	return w
}

func (w *ThriftWriter) Bool(v bool) *ThriftWriter {
	if v {
		return w.Byte(1)
	}
	return w.Byte(0)
}

func (w *ThriftWriter) I16(v int16) *ThriftWriter {
	w.buf.Write(binary.BigEndian.AppendUint16(nil, uint16(v)))
	return w
}

func (w *ThriftWriter) I32(v int32) *ThriftWriter {
	w.buf.Write(binary.BigEndian.AppendUint32(nil, uint32(v)))
	return w
}

func (w *ThriftWriter) I64(v int64) *ThriftWriter {
	w.buf.Write(binary.BigEndian.AppendUint64(nil, uint64(v)))
	return w
}

func (w *ThriftWriter) Double(v float64) *ThriftWriter {
	return w.I64(int64(math.Float64bits(v)))
}

func (w *ThriftWriter) String(s string) *ThriftWriter {
	return w.Binary([]byte(s))
}

func (w *ThriftWriter) Binary(b []byte) *ThriftWriter {
	w.I32(int32(len(b)))
	w.buf.Write(b)
	return w
}

func (w *ThriftWriter) ListHeader(elemType byte, n int) *ThriftWriter {
	w.buf.WriteByte(elemType)
	return w.I32(int32(n))
}

func (w *ThriftWriter) MapHeader(keyType, valueType byte, n int) *ThriftWriter {
	w.buf.WriteByte(keyType)
	w.buf.WriteByte(valueType)
	return w.I32(int32(n))
}

// Raw appends bytes verbatim.
func (w *ThriftWriter) Raw(b []byte) *ThriftWriter {
	w.buf.Write(b)
	return w
}

// Binary annotation type codes.
const (
	AnnotationTypeBool   int32 = 0
	AnnotationTypeBytes  int32 = 1
	AnnotationTypeI16    int32 = 2
	AnnotationTypeI32    int32 = 3
	AnnotationTypeI64    int32 = 4
	AnnotationTypeDouble int32 = 5
	AnnotationTypeString int32 = 6
)

// Endpoint mirrors the zipkincore.Endpoint thrift struct. IPv4 is the
// address as an unsigned number; it goes on the wire as the same 32 bits.
type Endpoint struct {
	IPv4        uint32
	Port        int16
	ServiceName string
	IPv6        []byte
}

func (e Endpoint) Write(w *ThriftWriter) {
	w.Field(thrift.TypeI32, 1).I32(int32(e.IPv4))
	w.Field(thrift.TypeI16, 2).I16(e.Port)
	w.Field(thrift.TypeString, 3).String(e.ServiceName)
	if e.IPv6 != nil {
		w.Field(thrift.TypeString, 4).Binary(e.IPv6)
	}
	w.Stop()
}

// Annotation mirrors zipkincore.Annotation. A zero Timestamp or empty Value
// is left off the wire.
type Annotation struct {
	Timestamp int64
	Value     string
	Host      *Endpoint
}

func (a Annotation) Write(w *ThriftWriter) {
	if a.Timestamp != 0 {
		w.Field(thrift.TypeI64, 1).I64(a.Timestamp)
	}
	if a.Value != "" {
		w.Field(thrift.TypeString, 2).String(a.Value)
	}
	if a.Host != nil {
		w.Field(thrift.TypeStruct, 3)
		a.Host.Write(w)
	}
	w.Stop()
}

// BinaryAnnotation mirrors zipkincore.BinaryAnnotation. A nil Value is left
// off the wire.
type BinaryAnnotation struct {
	Key   string
	Value []byte
	Type  int32
	Host  *Endpoint
}

func (a BinaryAnnotation) Write(w *ThriftWriter) {
	if a.Key != "" {
		w.Field(thrift.TypeString, 1).String(a.Key)
	}
	if a.Value != nil {
		w.Field(thrift.TypeString, 2).Binary(a.Value)
	}
	w.Field(thrift.TypeI32, 3).I32(a.Type)
	if a.Host != nil {
		w.Field(thrift.TypeStruct, 4)
		a.Host.Write(w)
	}
	w.Stop()
}

// Span mirrors zipkincore.Span. Zero ids, timestamps and durations are left
// off the wire.
type Span struct {
	TraceIDHigh       int64
	TraceID           int64
	Name              string
	ID                int64
	ParentID          int64
	Annotations       []Annotation
	BinaryAnnotations []BinaryAnnotation
	Debug             bool
	Timestamp         int64
	Duration          int64
}

func (s Span) Write(w *ThriftWriter) {
	w.Field(thrift.TypeI64, 1).I64(s.TraceID)
	w.Field(thrift.TypeString, 3).String(s.Name)
	w.Field(thrift.TypeI64, 4).I64(s.ID)
	if s.ParentID != 0 {
		w.Field(thrift.TypeI64, 5).I64(s.ParentID)
	}
	w.Field(thrift.TypeList, 6).ListHeader(thrift.TypeStruct, len(s.Annotations))
	for _, a := range s.Annotations {
		a.Write(w)
	}
	w.Field(thrift.TypeList, 8).ListHeader(thrift.TypeStruct, len(s.BinaryAnnotations))
	for _, a := range s.BinaryAnnotations {
		a.Write(w)
	}
	if s.Debug {
		w.Field(thrift.TypeBool, 9).Bool(true)
	}
	if s.Timestamp != 0 {
		w.Field(thrift.TypeI64, 10).I64(s.Timestamp)
	}
	if s.Duration != 0 {
		w.Field(thrift.TypeI64, 11).I64(s.Duration)
	}
	if s.TraceIDHigh != 0 {
		w.Field(thrift.TypeI64, 12).I64(s.TraceIDHigh)
	}
	w.Stop()
}

// EncodeSpan returns a single span struct.
func EncodeSpan(s Span) []byte {
	var w ThriftWriter
	s.Write(&w)
	return w.Bytes()
}

// EncodeSpans returns a list of span structs, the form Zipkin v1 clients
// POST to /api/v1/spans.
func EncodeSpans(spans ...Span) []byte {
	var w ThriftWriter
	w.ListHeader(thrift.TypeStruct, len(spans))
	for _, s := range spans {
		s.Write(&w)
	}
	return w.Bytes()
}

// I16Bytes, I32Bytes, I64Bytes and DoubleBytes encode binary annotation
// values the way zipkin clients do.
func I16Bytes(v int16) []byte {
	return binary.BigEndian.AppendUint16(nil, uint16(v))
}

func I32Bytes(v int32) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(v))
}

func I64Bytes(v int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(v))
}

func DoubleBytes(v float64) []byte {
	return binary.BigEndian.AppendUint64(nil, math.Float64bits(v))
}
