package zipkin

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/honeycombio/zipkinv1"
	"github.com/honeycombio/zipkinv1/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	frontendHost = &test.Endpoint{IPv4: 0x7f000001, Port: 8080, ServiceName: "Frontend"}
	backendHost  = &test.Endpoint{IPv4: 0xc0a80102, Port: 9000, ServiceName: "backend"}
)

const (
	spanStart = int64(1472470996199000)
	traceHex  = "463ac35c9f6413ad48485a3953bb6124"
	spanHex   = "6b221d5bc9e6496c"
)

func clientSpan() test.Span {
	return test.Span{
		TraceIDHigh: 0x463ac35c9f6413ad,
		TraceID:     0x48485a3953bb6124,
		Name:        "get /api",
		ID:          0x6b221d5bc9e6496c,
		ParentID:    0x1,
		Annotations: []test.Annotation{
			{Timestamp: spanStart, Value: "cs", Host: frontendHost},
			{Timestamp: spanStart + 39000, Value: "foo", Host: frontendHost},
			{Timestamp: spanStart + 207000, Value: "cr", Host: frontendHost},
		},
		BinaryAnnotations: []test.BinaryAnnotation{
			{Key: "http.path", Value: []byte("/api"), Type: test.AnnotationTypeString, Host: frontendHost},
			{Key: "sa", Value: []byte{1}, Type: test.AnnotationTypeBool, Host: backendHost},
			{Key: "error", Value: []byte("boom"), Type: test.AnnotationTypeString, Host: frontendHost},
			{Key: "sampleRate", Value: []byte("10"), Type: test.AnnotationTypeString, Host: frontendHost},
		},
		Debug:     true,
		Timestamp: spanStart,
		Duration:  207000,
	}
}

func serverSpan(traceID, id int64, service string) test.Span {
	host := &test.Endpoint{IPv4: 0x0a000003, Port: 80, ServiceName: service}
	return test.Span{
		TraceID: traceID,
		Name:    "handle",
		ID:      id,
		Annotations: []test.Annotation{
			{Timestamp: spanStart, Value: "sr", Host: host},
			{Timestamp: spanStart + 500, Value: "ss", Host: host},
		},
	}
}

func thriftRequestInfo() RequestInfo {
	return RequestInfo{ApiKey: apiKey, ContentType: "application/x-thrift"}
}

func TestTranslateTraceRequest(t *testing.T) {
	data := test.EncodeSpans(clientSpan())
	result, err := TranslateTraceRequest(context.Background(), data, thriftRequestInfo())
	require.NoError(t, err)

	assert.Equal(t, len(data), result.RequestSize)
	require.Len(t, result.Batches, 1)
	batch := result.Batches[0]
	assert.Equal(t, "frontend", batch.Dataset)
	require.Len(t, batch.Events, 2)

	spanEvent := batch.Events[0]
	assert.Equal(t, time.UnixMicro(spanStart+39000).UTC(), spanEvent.Timestamp)
	assert.Equal(t, int32(10), spanEvent.SampleRate)
	assert.Equal(t, map[string]interface{}{
		"trace.trace_id":                traceHex,
		"trace.parent_id":               spanHex,
		"name":                          "foo",
		"parent_name":                   "get /api",
		"service.name":                  "frontend",
		"meta.annotation_type":          "span_event",
		"meta.signal_type":              "trace",
		"meta.time_since_span_start_ms": float64(39),
		"error":                         true,
	}, spanEvent.Attributes)

	ev := batch.Events[1]
	assert.Equal(t, time.UnixMicro(spanStart).UTC(), ev.Timestamp)
	assert.Equal(t, int32(10), ev.SampleRate)
	assert.Equal(t, map[string]interface{}{
		"trace.trace_id":      traceHex,
		"trace.span_id":       spanHex,
		"trace.parent_id":     "0000000000000001",
		"name":                "get /api",
		"type":                "client",
		"span.kind":           "client",
		"meta.signal_type":    "trace",
		"service.name":        "frontend",
		"duration_ms":         float64(207),
		"span.num_events":     int64(1),
		"debug":               true,
		"error":               true,
		"status_message":      "boom",
		"http.path":           "/api",
		"server.service_name": "backend",
		"server.address":      "192.168.1.2",
		"server.port":         int64(9000),
	}, ev.Attributes)
}

func TestTranslateTraceRequestBatchesByDataset(t *testing.T) {
	data := test.EncodeSpans(
		serverSpan(1, 11, "alpha"),
		serverSpan(1, 12, "beta"),
		serverSpan(2, 21, "alpha"),
	)

	t.Run("service name", func(t *testing.T) {
		result, err := TranslateTraceRequest(context.Background(), data, thriftRequestInfo())
		require.NoError(t, err)
		require.Len(t, result.Batches, 2)
		assert.Equal(t, "alpha", result.Batches[0].Dataset)
		assert.Len(t, result.Batches[0].Events, 2)
		assert.Equal(t, "beta", result.Batches[1].Dataset)
		assert.Len(t, result.Batches[1].Events, 1)
	})

	t.Run("classic key", func(t *testing.T) {
		ri := RequestInfo{ApiKey: legacyAPIKey, Dataset: "legacy", ContentType: "application/x-thrift"}
		result, err := TranslateTraceRequest(context.Background(), data, ri)
		require.NoError(t, err)
		require.Len(t, result.Batches, 1)
		assert.Equal(t, "legacy", result.Batches[0].Dataset)
		assert.Len(t, result.Batches[0].Events, 3)
	})
}

func TestTranslateTraceRequestServerSpan(t *testing.T) {
	result, err := TranslateTraceRequest(context.Background(), test.EncodeSpan(serverSpan(7, 8, "Backend")), thriftRequestInfo())
	require.NoError(t, err)
	require.Len(t, result.Batches, 1)
	require.Len(t, result.Batches[0].Events, 1)

	ev := result.Batches[0].Events[0]
	assert.Equal(t, "backend", result.Batches[0].Dataset)
	assert.Equal(t, int32(1), ev.SampleRate)
	assert.Equal(t, "0000000000000007", ev.Attributes["trace.trace_id"])
	assert.Equal(t, "server", ev.Attributes["span.kind"])
	assert.Equal(t, 0.5, ev.Attributes["duration_ms"])
	assert.Equal(t, int64(0), ev.Attributes["span.num_events"])
	assert.NotContains(t, ev.Attributes, "trace.parent_id")
	assert.NotContains(t, ev.Attributes, "error")
	assert.NotContains(t, ev.Attributes, "debug")
}

func TestTranslateTraceRequestDropsUnidentifiedSpans(t *testing.T) {
	var telemetry map[string]any
	zipkinv1.SetAttributesFunc = func(ctx context.Context, attributes map[string]any) {
		telemetry = attributes
	}
	defer func() { zipkinv1.SetAttributesFunc = nil }()

	data := test.EncodeSpans(
		serverSpan(0, 1, "alpha"),
		serverSpan(1, 0, "alpha"),
		serverSpan(1, 2, "alpha"),
	)
	result, err := TranslateTraceRequest(context.Background(), data, thriftRequestInfo())
	require.NoError(t, err)
	require.Len(t, result.Batches, 1)
	assert.Len(t, result.Batches[0].Events, 1)

	assert.Equal(t, 1, telemetry["zipkin.span_count"])
	assert.Equal(t, 2, telemetry["zipkin.dropped_spans"])
}

func TestTranslateTraceRequestTagHandling(t *testing.T) {
	span := serverSpan(1, 2, "alpha")
	span.BinaryAnnotations = []test.BinaryAnnotation{
		{Key: "name", Value: []byte("overridden"), Type: test.AnnotationTypeString},
		{Key: "dup", Value: []byte("first"), Type: test.AnnotationTypeString},
		{Key: "dup", Value: []byte("second"), Type: test.AnnotationTypeString},
		{Key: "http.status_code", Value: test.I32Bytes(404), Type: test.AnnotationTypeI32},
		{Key: "cached", Value: []byte{0}, Type: test.AnnotationTypeBool},
		{Key: "big", Value: []byte(strings.Repeat("x", fieldSizeMax+3)), Type: test.AnnotationTypeString},
		{Key: "error", Value: []byte(""), Type: test.AnnotationTypeString},
	}
	result, err := TranslateTraceRequest(context.Background(), test.EncodeSpan(span), thriftRequestInfo())
	require.NoError(t, err)
	attrs := result.Batches[0].Events[0].Attributes

	assert.Equal(t, "handle", attrs["name"])
	assert.Equal(t, "first", attrs["dup"])
	assert.Equal(t, "404", attrs["http.status_code"])
	assert.Equal(t, "false", attrs["cached"])
	assert.Len(t, attrs["big"], fieldSizeMax)
	assert.Equal(t, int64(3), attrs["meta.truncated_bytes"])
	assert.Equal(t, "big", attrs["meta.truncated_field"])
	assert.Equal(t, true, attrs["error"])
	assert.NotContains(t, attrs, "status_message")
}

func TestTranslateTraceRequestInvalidDuration(t *testing.T) {
	span := test.Span{
		TraceID: 1,
		ID:      2,
		Name:    "skewed",
		Annotations: []test.Annotation{
			{Timestamp: spanStart + 100, Value: "cs", Host: frontendHost},
			{Timestamp: spanStart, Value: "cr", Host: frontendHost},
			{Timestamp: spanStart + 50, Value: "retry", Host: frontendHost},
		},
	}
	result, err := TranslateTraceRequest(context.Background(), test.EncodeSpan(span), thriftRequestInfo())
	require.NoError(t, err)
	events := result.Batches[0].Events
	require.Len(t, events, 2)

	assert.Equal(t, float64(50)/1000, events[0].Attributes["meta.time_since_span_start_ms"])
	assert.Equal(t, float64(0), events[1].Attributes["duration_ms"])
	assert.Equal(t, true, events[1].Attributes["meta.invalid_duration"])
	assert.Equal(t, time.UnixMicro(spanStart).UTC(), events[1].Timestamp)
}

func TestTranslateTraceRequestJSON(t *testing.T) {
	body := `[{
		"traceId": "48485a3953bb6124",
		"id": "6b221d5bc9e6496c",
		"name": "get",
		"timestamp": 1472470996199000,
		"duration": 1000,
		"annotations": [{"timestamp": 1472470996199000, "value": "sr", "endpoint": {"serviceName": "json-svc", "ipv4": "10.0.0.1"}}],
		"binaryAnnotations": [{"key": "retries", "value": 3}]
	}]`
	ri := RequestInfo{ApiKey: apiKey, ContentType: "application/json"}
	result, err := TranslateTraceRequest(context.Background(), []byte(body), ri)
	require.NoError(t, err)
	require.Len(t, result.Batches, 1)
	assert.Equal(t, "json-svc", result.Batches[0].Dataset)
	attrs := result.Batches[0].Events[0].Attributes
	assert.Equal(t, "48485a3953bb6124", attrs["trace.trace_id"])
	assert.Equal(t, "server", attrs["span.kind"])
	assert.Equal(t, float64(1), attrs["duration_ms"])
	assert.Equal(t, "3", attrs["retries"])
}

func TestTranslateTraceRequestErrors(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		ri   RequestInfo
		err  error
	}{
		{name: "missing api key", data: test.EncodeSpan(clientSpan()), ri: RequestInfo{ContentType: "application/x-thrift"}, err: ErrMissingAPIKeyHeader},
		{name: "unsupported content type", data: test.EncodeSpan(clientSpan()), ri: RequestInfo{ApiKey: apiKey, ContentType: "text/plain"}, err: ErrInvalidContentType},
		{name: "empty thrift", ri: thriftRequestInfo(), err: ErrFailedParseBody},
		{name: "truncated thrift", data: test.EncodeSpan(clientSpan())[:20], ri: thriftRequestInfo(), err: ErrFailedParseBody},
		{name: "bad json", data: []byte("{"), ri: RequestInfo{ApiKey: apiKey, ContentType: "application/json"}, err: ErrFailedParseBody},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := TranslateTraceRequest(context.Background(), tc.data, tc.ri)
			assert.Nil(t, result)
			assert.Equal(t, tc.err, err)
		})
	}
}

func TestTranslateTraceRequestRecordsDecodeError(t *testing.T) {
	var telemetry map[string]any
	zipkinv1.SetAttributesFunc = func(ctx context.Context, attributes map[string]any) {
		telemetry = attributes
	}
	defer func() { zipkinv1.SetAttributesFunc = nil }()

	_, err := TranslateTraceRequest(context.Background(), []byte{0x0b}, thriftRequestInfo())
	assert.Equal(t, ErrFailedParseBody, err)
	assert.Equal(t, "application/x-thrift", telemetry["zipkin.content_type"])
	assert.NotEmpty(t, telemetry["zipkin.decode_error"])
}

func TestTranslateTraceRequestFromReader(t *testing.T) {
	data := test.EncodeSpans(clientSpan())
	for _, encoding := range GetSupportedContentEncodings() {
		t.Run(testCaseNameForEncoding(encoding), func(t *testing.T) {
			body, err := encodeBody(data, encoding)
			require.NoError(t, err)

			ri := thriftRequestInfo()
			ri.ContentEncoding = encoding
			result, err := TranslateTraceRequestFromReader(context.Background(), bodyReader(body), ri)
			require.NoError(t, err)
			assert.Equal(t, len(data), result.RequestSize)
			require.Len(t, result.Batches, 1)
			assert.Len(t, result.Batches[0].Events, 2)
		})
	}
}

func TestTranslateTraceRequestFromReaderErrors(t *testing.T) {
	ri := thriftRequestInfo()
	ri.ContentEncoding = "br"
	_, err := TranslateTraceRequestFromReader(context.Background(), bodyReader([]byte{1}), ri)
	assert.Equal(t, ErrInvalidContentEncoding, err)

	ri.ContentEncoding = "gzip"
	_, err = TranslateTraceRequestFromReader(context.Background(), bodyReader([]byte("not gzip")), ri)
	assert.Equal(t, ErrFailedParseBody, err)
}
