package zipkin

// Zipkin v1 JSON, as posted to /api/v1/spans with Content-Type
// application/json: an array of span objects. Ids are lower-hex strings,
// times are epoch microseconds.

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/honeycombio/zipkinv1/v1span"
	"github.com/valyala/fastjson"
)

var parserPool fastjson.ParserPool

var errNotSpanArray = errors.New("zipkin: json payload is not an array of spans")

// DecodeJSONSpans decodes a Zipkin v1 JSON payload. Annotations and binary
// annotations follow the same rules as the thrift decoder: annotations need
// a timestamp and a value, and a true boolean under ca, sa or ma with an
// endpoint marks an address.
func DecodeJSONSpans(data []byte) ([]*v1span.Span, error) {
	parser := parserPool.Get()
	defer parserPool.Put(parser)

	v, err := parser.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	if v.Type() != fastjson.TypeArray {
		return nil, errNotSpanArray
	}

	values, _ := v.Array()
	spans := make([]*v1span.Span, 0, len(values))
	builder := v1span.NewSpanBuilder()
	for i, spanVal := range values {
		builder.Clear()
		if err := unmarshalSpanJSON(spanVal, builder); err != nil {
			return nil, fmt.Errorf("zipkin: span %d: %w", i, err)
		}
		spans = append(spans, builder.Build())
	}
	return spans, nil
}

func unmarshalSpanJSON(v *fastjson.Value, builder *v1span.SpanBuilder) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}

	obj.Visit(func(key []byte, v *fastjson.Value) {
		// Closure-based error handling
		// if err is set, all subsequent visits are no-ops
		if err != nil {
			return
		}
		switch string(key) {
		case "traceId":
			var high, low uint64
			if high, low, err = parseTraceID(v.GetStringBytes()); err == nil {
				builder.TraceIDHigh(high).TraceID(low)
			}
		case "id":
			var id uint64
			if id, err = parseID(v.GetStringBytes()); err == nil {
				builder.ID(id)
			}
		case "parentId":
			if v.Type() == fastjson.TypeNull {
				return
			}
			var id uint64
			if id, err = parseID(v.GetStringBytes()); err == nil {
				builder.ParentID(id)
			}
		case "name":
			builder.Name(string(v.GetStringBytes()))
		case "timestamp":
			builder.Timestamp(v.GetInt64())
		case "duration":
			builder.Duration(v.GetInt64())
		case "debug":
			builder.Debug(v.GetBool())
		case "annotations":
			for _, a := range v.GetArray() {
				if err = unmarshalAnnotationJSON(a, builder); err != nil {
					return
				}
			}
		case "binaryAnnotations":
			for _, ba := range v.GetArray() {
				if err = unmarshalBinaryAnnotationJSON(ba, builder); err != nil {
					return
				}
			}
		}
	})
	return err
}

func unmarshalAnnotationJSON(v *fastjson.Value, builder *v1span.SpanBuilder) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	var timestamp int64
	var value string
	var hasValue bool
	var endpoint *v1span.Endpoint
	obj.Visit(func(key []byte, v *fastjson.Value) {
		if err != nil {
			return
		}
		switch string(key) {
		case "timestamp":
			timestamp = v.GetInt64()
		case "value":
			if v.Type() == fastjson.TypeString {
				value = string(v.GetStringBytes())
				hasValue = true
			}
		case "endpoint":
			endpoint, err = unmarshalEndpointJSON(v)
		}
	})
	if err != nil {
		return err
	}
	if timestamp != 0 && hasValue {
		builder.AddAnnotation(timestamp, value, endpoint)
	}
	return nil
}

func unmarshalBinaryAnnotationJSON(v *fastjson.Value, builder *v1span.SpanBuilder) error {
	obj, err := v.Object()
	if err != nil {
		return err
	}
	var key string
	var value *fastjson.Value
	var endpoint *v1span.Endpoint
	obj.Visit(func(k []byte, v *fastjson.Value) {
		if err != nil {
			return
		}
		switch string(k) {
		case "key":
			key = string(v.GetStringBytes())
		case "value":
			value = v
		case "endpoint":
			endpoint, err = unmarshalEndpointJSON(v)
		}
	})
	if err != nil {
		return err
	}
	if key == "" || value == nil {
		return nil
	}

	switch value.Type() {
	case fastjson.TypeString:
		builder.AddBinaryAnnotation(key, string(value.GetStringBytes()), endpoint)
	case fastjson.TypeTrue:
		if endpoint != nil && v1span.IsAddressKey(key) {
			builder.AddAddress(key, endpoint)
		} else {
			builder.AddBinaryAnnotation(key, "true", endpoint)
		}
	case fastjson.TypeFalse:
		builder.AddBinaryAnnotation(key, "false", endpoint)
	case fastjson.TypeNumber:
		// keep the number exactly as it was written
		builder.AddBinaryAnnotation(key, string(value.MarshalTo(nil)), endpoint)
	}
	return nil
}

// unmarshalEndpointJSON returns nil for an endpoint that carries nothing.
func unmarshalEndpointJSON(v *fastjson.Value) (*v1span.Endpoint, error) {
	if v.Type() == fastjson.TypeNull {
		return nil, nil
	}
	obj, err := v.Object()
	if err != nil {
		return nil, err
	}
	var ep v1span.Endpoint
	obj.Visit(func(key []byte, v *fastjson.Value) {
		if err != nil {
			return
		}
		switch string(key) {
		case "serviceName":
			ep.ServiceName = strings.ToLower(string(v.GetStringBytes()))
		case "ipv4":
			if s := v.GetStringBytes(); len(s) > 0 {
				var addr netip.Addr
				if addr, err = netip.ParseAddr(string(s)); err == nil && addr.Is4() {
					ep.IPv4 = addr
				}
			}
		case "ipv6":
			if s := v.GetStringBytes(); len(s) > 0 {
				var addr netip.Addr
				if addr, err = netip.ParseAddr(string(s)); err == nil && !addr.IsUnspecified() {
					if addr.Is4In6() {
						if !ep.IPv4.IsValid() {
							ep.IPv4 = addr.Unmap()
						}
					} else if addr.Is6() {
						ep.IPv6 = addr
					}
				}
			}
		case "port":
			port := v.GetInt()
			if port > 0 && port <= 0xffff {
				ep.Port = uint16(port)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if ep.IsEmpty() {
		return nil, nil
	}
	return &ep, nil
}

// parseTraceID accepts 16 or 32 hex characters; the leading 16 of a 32
// character id are the high bits.
func parseTraceID(s []byte) (high, low uint64, err error) {
	if len(s) > 16 {
		if len(s) > 32 {
			return 0, 0, fmt.Errorf("zipkin: trace id %q is longer than 32 hex characters", s)
		}
		split := len(s) - 16
		if high, err = strconv.ParseUint(string(s[:split]), 16, 64); err != nil {
			return 0, 0, err
		}
		s = s[split:]
	}
	low, err = parseID(s)
	return high, low, err
}

func parseID(s []byte) (uint64, error) {
	if len(s) == 0 || len(s) > 16 {
		return 0, fmt.Errorf("zipkin: invalid id %q", s)
	}
	return strconv.ParseUint(string(s), 16, 64)
}
