package v1thrift

import (
	"github.com/honeycombio/zipkinv1/thrift"
	"github.com/honeycombio/zipkinv1/v1span"
)

var (
	annotationTimestamp = thrift.Field{Type: thrift.TypeI64, ID: 1}
	annotationValue     = thrift.Field{Type: thrift.TypeString, ID: 2}
	annotationHost      = thrift.Field{Type: thrift.TypeStruct, ID: 3}
)

// readAnnotation decodes one zipkincore.Annotation. Annotations without a
// timestamp or a value are consumed and dropped.
func readAnnotation(b *thrift.ReadBuffer, builder *v1span.SpanBuilder) error {
	var (
		timestamp int64
		value     string
		hasValue  bool
		endpoint  *v1span.Endpoint
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
		case annotationTimestamp:
			if timestamp, err = b.ReadInt64(); err != nil {
				return err
			}
		case annotationValue:
			if value, err = b.ReadString(); err != nil {
				return err
			}
			hasValue = true
		case annotationHost:
			if endpoint, err = ReadEndpoint(b); err != nil {
				return err
			}
		default:
			if err := thrift.Skip(b, field.Type); err != nil {
				return err
			}
		}
	}

	if timestamp == 0 || !hasValue {
		return nil
	}
	builder.AddAnnotation(timestamp, value, endpoint)
	return nil
}
