package zipkin

// Zipkin v1 span to Honeycomb event translation:
//
// Span -> one event, plus one span-event event per non-core annotation
// ├── trace_id_high, trace_id -> "trace.trace_id" (16 or 32 hex chars)
// ├── id -> "trace.span_id"
// ├── parent_id -> "trace.parent_id" (if non-zero)
// ├── name -> "name"
// ├── timestamp -> Event.Timestamp (else the earliest annotation)
// ├── duration -> "duration_ms" (else cs..cr or sr..ss)
// ├── debug -> "debug" (if set)
// ├── annotations
// │   ├── cs cr sr ss ms mr ws wr -> "type" and "span.kind"
// │   └── anything else -> a separate event
// │       ├── value -> "name"
// │       ├── timestamp -> Event.Timestamp
// │       └── Additional fields:
// │           - "trace.trace_id", "trace.parent_id" (the span's id)
// │           - "parent_name" (the span's name)
// │           - "meta.annotation_type" = "span_event"
// │           - "meta.signal_type" = "trace"
// │           - "meta.time_since_span_start_ms"
// │           - "error" = true (if the span has an error tag)
// └── binary_annotations
//     ├── ca, sa, ma address markers -> "client.*", "server.*", "broker.*"
//     │                                 (service_name, address, port)
//     ├── "error" -> "error" = true, "status_message"
//     ├── "sampleRate", "SampleRate" -> Event.SampleRate
//     └── anything else -> attribute named by the key
//
// The service name comes from the endpoint of the local core annotations,
// then the "lc" tag, then any endpoint; it selects the dataset for
// non-classic keys.

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/honeycombio/zipkinv1"
	"github.com/honeycombio/zipkinv1/v1span"
	"github.com/honeycombio/zipkinv1/v1thrift"
)

type TranslateResult struct {
	RequestSize int
	Batches     []Batch
}

// Batch represents Honeycomb events grouped by their target dataset
type Batch struct {
	Dataset string
	Events  []Event
}

// Event represents a single Honeycomb event
type Event struct {
	Attributes map[string]interface{}
	Timestamp  time.Time
	SampleRate int32
}

// attributeSink receives the attributes of one event.
type attributeSink interface {
	addString(key string, value string)
	addInt64(key string, value int64)
	addFloat64(key string, value float64)
	addBool(key string, value bool)
}

type mapAttributes map[string]interface{}

func (m mapAttributes) addString(key string, value string)   { m[key] = value }
func (m mapAttributes) addInt64(key string, value int64)     { m[key] = value }
func (m mapAttributes) addFloat64(key string, value float64) { m[key] = value }
func (m mapAttributes) addBool(key string, value bool)       { m[key] = value }

// TranslateTraceRequestFromReader translates a Zipkin v1 HTTP request body into Honeycomb-friendly structure
// RequestInfo is the parsed information from the HTTP headers
func TranslateTraceRequestFromReader(ctx context.Context, body io.ReadCloser, ri RequestInfo) (*TranslateResult, error) {
	if err := ri.ValidateTracesHeaders(); err != nil {
		return nil, err
	}
	data, err := readRequestBody(body, ri.ContentEncoding)
	if err != nil {
		if errors.Is(err, ErrInvalidContentEncoding) {
			return nil, err
		}
		zipkinv1.AddTelemetryAttribute(ctx, "zipkin.read_error", err.Error())
		return nil, ErrFailedParseBody
	}
	return TranslateTraceRequest(ctx, data, ri)
}

// TranslateTraceRequest translates an uncompressed Zipkin v1 payload into Honeycomb-friendly structure
// RequestInfo is the parsed information from the HTTP headers or gRPC metadata
func TranslateTraceRequest(ctx context.Context, data []byte, ri RequestInfo) (*TranslateResult, error) {
	if err := ri.ValidateTracesHeaders(); err != nil {
		return nil, err
	}
	spans, err := decodeSpans(ctx, data, ri.ContentType)
	if err != nil {
		return nil, err
	}

	result := &TranslateResult{RequestSize: len(data)}
	batchIndex := map[string]int{}
	for _, span := range spans {
		info := newSpanInfo(span)
		dataset := getDataset(ri, info.serviceName)
		i, ok := batchIndex[dataset]
		if !ok {
			i = len(result.Batches)
			batchIndex[dataset] = i
			result.Batches = append(result.Batches, Batch{Dataset: dataset})
		}
		batch := &result.Batches[i]

		newSink := func() mapAttributes { return mapAttributes{} }
		emit := func(attrs mapAttributes, timestamp time.Time) error {
			batch.Events = append(batch.Events, Event{
				Attributes: attrs,
				Timestamp:  timestamp,
				SampleRate: info.sampleRate,
			})
			return nil
		}
		if err := translateSpan(span, info, newSink, emit); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// decodeSpans decodes the payload by content type and drops spans that
// cannot be placed in a trace.
func decodeSpans(ctx context.Context, data []byte, contentType string) ([]*v1span.Span, error) {
	var spans []*v1span.Span
	var err error
	switch {
	case isThriftContentType(contentType):
		spans, err = v1thrift.DecodeSpans(data)
	case contentType == contentTypeJSON:
		spans, err = DecodeJSONSpans(data)
	default:
		return nil, ErrInvalidContentType
	}
	if err != nil {
		zipkinv1.AddTelemetryAttributes(ctx, map[string]any{
			"zipkin.content_type": contentType,
			"zipkin.decode_error": err.Error(),
		})
		return nil, ErrFailedParseBody
	}

	kept := spans[:0]
	for _, span := range spans {
		if span.TraceID == 0 || span.ID == 0 {
			continue
		}
		kept = append(kept, span)
	}
	zipkinv1.AddTelemetryAttributes(ctx, map[string]any{
		"zipkin.content_type":  contentType,
		"zipkin.span_count":    len(kept),
		"zipkin.dropped_spans": len(spans) - len(kept),
	})
	return kept, nil
}

// translateSpan writes one event per non-core annotation followed by the
// span's own event. Every event's attribute keys are unique; the first write
// of a key wins.
func translateSpan[S attributeSink](span *v1span.Span, info spanInfo, newSink func() S, emit func(S, time.Time) error) error {
	numEvents := 0
	for i := range span.Annotations {
		a := &span.Annotations[i]
		if isCoreAnnotation(a.Value) {
			continue
		}
		numEvents++

		attrs := newSink()
		attrs.addString("trace.trace_id", info.traceID)
		attrs.addString("trace.parent_id", info.spanID)
		attrs.addString("name", a.Value)
		attrs.addString("parent_name", span.Name)
		attrs.addString("meta.annotation_type", "span_event")
		attrs.addString("meta.signal_type", "trace")
		if a.Endpoint != nil && a.Endpoint.ServiceName != "" {
			attrs.addString("service.name", a.Endpoint.ServiceName)
		} else if info.serviceName != "" {
			attrs.addString("service.name", info.serviceName)
		}
		sinceStart := a.Timestamp - info.startMicros
		if sinceStart < 0 {
			attrs.addBool("meta.invalid_time_since_span_start", true)
			sinceStart = 0
		}
		attrs.addFloat64("meta.time_since_span_start_ms", microsToMillis(sinceStart))
		if info.isError {
			attrs.addBool("error", true)
		}
		if err := emit(attrs, time.UnixMicro(a.Timestamp).UTC()); err != nil {
			return err
		}
	}

	attrs := newSink()
	seen := make(map[string]struct{}, 16+len(span.BinaryAnnotations))
	add := func(key string) bool {
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
		return true
	}
	addString := func(key, value string) {
		if add(key) {
			attrs.addString(key, value)
		}
	}

	addString("trace.trace_id", info.traceID)
	addString("trace.span_id", info.spanID)
	if info.parentID != "" {
		addString("trace.parent_id", info.parentID)
	}
	addString("name", span.Name)
	addString("type", info.kind)
	addString("span.kind", info.kind)
	addString("meta.signal_type", "trace")
	if info.serviceName != "" {
		addString("service.name", info.serviceName)
	}
	if add("duration_ms") {
		if info.durationMs < 0 {
			attrs.addFloat64("duration_ms", 0)
			if add("meta.invalid_duration") {
				attrs.addBool("meta.invalid_duration", true)
			}
		} else {
			attrs.addFloat64("duration_ms", info.durationMs)
		}
	}
	if add("span.num_events") {
		attrs.addInt64("span.num_events", int64(numEvents))
	}
	if span.Debug && add("debug") {
		attrs.addBool("debug", true)
	}
	if info.isError {
		if add("error") {
			attrs.addBool("error", true)
		}
		if info.errMessage != "" {
			addString("status_message", info.errMessage)
		}
	}

	for i := range span.BinaryAnnotations {
		ba := &span.BinaryAnnotations[i]
		if ba.Address {
			prefix := addressPrefix(ba.Key)
			if prefix == "" || ba.Endpoint == nil {
				continue
			}
			if ba.Endpoint.ServiceName != "" {
				addString(prefix+"service_name", ba.Endpoint.ServiceName)
			}
			if addr := ba.Endpoint.Addr(); addr.IsValid() {
				addString(prefix+"address", addr.String())
			}
			if ba.Endpoint.Port != 0 && add(prefix+"port") {
				attrs.addInt64(prefix+"port", int64(ba.Endpoint.Port))
			}
			continue
		}
		if ba.Key == binaryAnnotationError || isSampleRateKey(ba.Key) || !add(ba.Key) {
			continue
		}
		value, truncatedBytes := truncateValue(ba.Value)
		attrs.addString(ba.Key, value)
		if truncatedBytes != 0 && add("meta.truncated_bytes") {
			attrs.addInt64("meta.truncated_bytes", int64(truncatedBytes))
			addString("meta.truncated_field", ba.Key)
		}
	}

	return emit(attrs, info.timestamp())
}

func microsToMillis(micros int64) float64 {
	return float64(micros) / float64(time.Millisecond/time.Microsecond)
}
