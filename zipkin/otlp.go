package zipkin

import (
	"context"
	"encoding/binary"

	"github.com/honeycombio/zipkinv1"
	"github.com/honeycombio/zipkinv1/v1span"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	common "go.opentelemetry.io/proto/otlp/common/v1"
	resource "go.opentelemetry.io/proto/otlp/resource/v1"
	trace "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
)

const scopeName = "github.com/honeycombio/zipkinv1"

// SpansToOTLP converts spans into an OTLP export request with one
// ResourceSpans per service name, in the order services are first seen.
func SpansToOTLP(spans []*v1span.Span) *collectortrace.ExportTraceServiceRequest {
	request := &collectortrace.ExportTraceServiceRequest{}
	byService := map[string]*trace.ScopeSpans{}
	for _, span := range spans {
		info := newSpanInfo(span)
		serviceName := info.serviceName
		if serviceName == "" {
			serviceName = defaultServiceName
		}
		scopeSpans, ok := byService[serviceName]
		if !ok {
			scopeSpans = &trace.ScopeSpans{
				Scope: &common.InstrumentationScope{
					Name:    scopeName,
					Version: zipkinv1.Version,
				},
			}
			byService[serviceName] = scopeSpans
			request.ResourceSpans = append(request.ResourceSpans, &trace.ResourceSpans{
				Resource: &resource.Resource{
					Attributes: []*common.KeyValue{stringKeyValue("service.name", serviceName)},
				},
				ScopeSpans: []*trace.ScopeSpans{scopeSpans},
			})
		}
		scopeSpans.Spans = append(scopeSpans.Spans, spanToOTLP(span, info))
	}
	return request
}

// TranslateTraceRequestToOTLP decodes an uncompressed Zipkin v1 payload and
// returns it as a serialized OTLP trace export request.
func TranslateTraceRequestToOTLP(ctx context.Context, data []byte, ri RequestInfo) ([]byte, error) {
	if err := ri.ValidateTracesHeaders(); err != nil {
		return nil, err
	}
	spans, err := decodeSpans(ctx, data, ri.ContentType)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(SpansToOTLP(spans))
}

func spanToOTLP(span *v1span.Span, info spanInfo) *trace.Span {
	start := uint64(info.startMicros) * 1000
	end := start
	if info.durationMs > 0 {
		end += uint64(getDurationMicros(span)) * 1000
	}
	otlpSpan := &trace.Span{
		TraceId:           span.TraceIDBytes(),
		SpanId:            idBytes(span.ID),
		Name:              span.Name,
		Kind:              otlpSpanKind(info.kind),
		StartTimeUnixNano: start,
		EndTimeUnixNano:   end,
	}
	if span.ParentID != 0 {
		otlpSpan.ParentSpanId = idBytes(span.ParentID)
	}
	if info.isError {
		otlpSpan.Status = &trace.Status{
			Code:    trace.Status_STATUS_CODE_ERROR,
			Message: info.errMessage,
		}
	}
	if span.Debug {
		otlpSpan.Attributes = append(otlpSpan.Attributes, boolKeyValue("debug", true))
	}

	for i := range span.Annotations {
		a := &span.Annotations[i]
		if isCoreAnnotation(a.Value) {
			continue
		}
		otlpSpan.Events = append(otlpSpan.Events, &trace.Span_Event{
			TimeUnixNano: uint64(a.Timestamp) * 1000,
			Name:         a.Value,
		})
	}

	for i := range span.BinaryAnnotations {
		ba := &span.BinaryAnnotations[i]
		if !ba.Address {
			if ba.Key != binaryAnnotationError {
				otlpSpan.Attributes = append(otlpSpan.Attributes, stringKeyValue(ba.Key, ba.Value))
			}
			continue
		}
		prefix := addressPrefix(ba.Key)
		if prefix == "" || ba.Endpoint == nil {
			continue
		}
		if ba.Endpoint.ServiceName != "" {
			otlpSpan.Attributes = append(otlpSpan.Attributes, stringKeyValue(prefix+"service_name", ba.Endpoint.ServiceName))
		}
		if addr := ba.Endpoint.Addr(); addr.IsValid() {
			otlpSpan.Attributes = append(otlpSpan.Attributes, stringKeyValue(prefix+"address", addr.String()))
		}
		if ba.Endpoint.Port != 0 {
			otlpSpan.Attributes = append(otlpSpan.Attributes, intKeyValue(prefix+"port", int64(ba.Endpoint.Port)))
		}
	}
	return otlpSpan
}

func otlpSpanKind(kind string) trace.Span_SpanKind {
	switch kind {
	case spanKindClient:
		return trace.Span_SPAN_KIND_CLIENT
	case spanKindServer:
		return trace.Span_SPAN_KIND_SERVER
	case spanKindProducer:
		return trace.Span_SPAN_KIND_PRODUCER
	case spanKindConsumer:
		return trace.Span_SPAN_KIND_CONSUMER
	default:
		return trace.Span_SPAN_KIND_INTERNAL
	}
}

func idBytes(id uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, id)
}

func stringKeyValue(key, value string) *common.KeyValue {
	return &common.KeyValue{Key: key, Value: &common.AnyValue{Value: &common.AnyValue_StringValue{StringValue: value}}}
}

func intKeyValue(key string, value int64) *common.KeyValue {
	return &common.KeyValue{Key: key, Value: &common.AnyValue{Value: &common.AnyValue_IntValue{IntValue: value}}}
}

func boolKeyValue(key string, value bool) *common.KeyValue {
	return &common.KeyValue{Key: key, Value: &common.AnyValue{Value: &common.AnyValue_BoolValue{BoolValue: value}}}
}
