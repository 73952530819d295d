package zipkin

import (
	"math"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/honeycombio/zipkinv1/v1span"
	"github.com/stretchr/testify/assert"
)

var (
	frontend = &v1span.Endpoint{ServiceName: "frontend", IPv4: netip.MustParseAddr("10.0.0.1"), Port: 8080}
	backend  = &v1span.Endpoint{ServiceName: "backend", IPv4: netip.MustParseAddr("10.0.0.2"), Port: 9000}
)

func annotations(values ...string) []v1span.Annotation {
	var out []v1span.Annotation
	for i, v := range values {
		out = append(out, v1span.Annotation{Timestamp: int64(1000 + i), Value: v})
	}
	return out
}

func TestGetSpanKind(t *testing.T) {
	testCases := []struct {
		name     string
		span     v1span.Span
		expected string
	}{
		{name: "client", span: v1span.Span{Annotations: annotations("cs", "cr")}, expected: "client"},
		{name: "client receive only", span: v1span.Span{Annotations: annotations("cr")}, expected: "client"},
		{name: "server", span: v1span.Span{Annotations: annotations("sr", "ss")}, expected: "server"},
		{name: "shared span prefers client", span: v1span.Span{Annotations: annotations("cs", "sr", "ss", "cr")}, expected: "client"},
		{name: "producer", span: v1span.Span{Annotations: annotations("ms")}, expected: "producer"},
		{name: "consumer", span: v1span.Span{Annotations: annotations("mr")}, expected: "consumer"},
		{name: "server address only", span: v1span.Span{BinaryAnnotations: []v1span.BinaryAnnotation{{Key: "sa", Endpoint: backend, Address: true}}}, expected: "client"},
		{name: "client address only", span: v1span.Span{BinaryAnnotations: []v1span.BinaryAnnotation{{Key: "ca", Endpoint: frontend, Address: true}}}, expected: "server"},
		{name: "sa tag that is not an address", span: v1span.Span{BinaryAnnotations: []v1span.BinaryAnnotation{{Key: "sa", Value: "x"}}}, expected: "internal"},
		{name: "local", span: v1span.Span{Annotations: annotations("retry")}, expected: "internal"},
		{name: "empty", expected: "internal"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, getSpanKind(&tc.span))
		})
	}
}

func TestGetServiceName(t *testing.T) {
	testCases := []struct {
		name     string
		span     v1span.Span
		expected string
	}{
		{
			name: "client annotation endpoint",
			span: v1span.Span{Annotations: []v1span.Annotation{
				{Timestamp: 1, Value: "sr", Endpoint: backend},
				{Timestamp: 2, Value: "cs", Endpoint: frontend},
			}},
			expected: "frontend",
		},
		{
			name: "server annotation endpoint",
			span: v1span.Span{Annotations: []v1span.Annotation{
				{Timestamp: 1, Value: "retry", Endpoint: frontend},
				{Timestamp: 2, Value: "sr", Endpoint: backend},
			}},
			expected: "backend",
		},
		{
			name: "local component",
			span: v1span.Span{BinaryAnnotations: []v1span.BinaryAnnotation{
				{Key: "http.path", Value: "/", Endpoint: frontend},
				{Key: "lc", Value: "cache", Endpoint: backend},
			}},
			expected: "backend",
		},
		{
			name:     "any annotation endpoint",
			span:     v1span.Span{Annotations: []v1span.Annotation{{Timestamp: 1, Value: "retry", Endpoint: frontend}}},
			expected: "frontend",
		},
		{
			name: "address markers are not the local service",
			span: v1span.Span{BinaryAnnotations: []v1span.BinaryAnnotation{
				{Key: "sa", Endpoint: backend, Address: true},
				{Key: "http.path", Value: "/", Endpoint: frontend},
			}},
			expected: "frontend",
		},
		{name: "none", span: v1span.Span{Annotations: annotations("cs")}, expected: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, getServiceName(&tc.span))
		})
	}
}

func TestStartAndDuration(t *testing.T) {
	testCases := []struct {
		name          string
		span          v1span.Span
		startMicros   int64
		durationMicro int64
	}{
		{name: "explicit", span: v1span.Span{Timestamp: 500, Duration: 70, Annotations: annotations("cs", "cr")}, startMicros: 500, durationMicro: 70},
		{
			name: "client annotations",
			span: v1span.Span{Annotations: []v1span.Annotation{
				{Timestamp: 120, Value: "cr"},
				{Timestamp: 100, Value: "cs"},
			}},
			startMicros:   100,
			durationMicro: 20,
		},
		{
			name: "server annotations",
			span: v1span.Span{Annotations: []v1span.Annotation{
				{Timestamp: 300, Value: "sr"},
				{Timestamp: 345, Value: "ss"},
			}},
			startMicros:   300,
			durationMicro: 45,
		},
		{name: "unpaired", span: v1span.Span{Annotations: []v1span.Annotation{{Timestamp: 300, Value: "sr"}}}, startMicros: 300},
		{name: "nothing", span: v1span.Span{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.startMicros, getStartMicros(&tc.span))
			assert.Equal(t, tc.durationMicro, getDurationMicros(&tc.span))
		})
	}
}

func TestSpanInfoTimestamp(t *testing.T) {
	assert.True(t, spanInfo{}.timestamp().IsZero())
	assert.Equal(t, time.UnixMicro(1_700_000_000_000_000).UTC(), spanInfo{startMicros: 1_700_000_000_000_000}.timestamp())
}

func TestGetSampleRate(t *testing.T) {
	testCases := []struct {
		name     string
		tags     []v1span.BinaryAnnotation
		expected int32
	}{
		{name: "missing", expected: 1},
		{name: "sampleRate", tags: []v1span.BinaryAnnotation{{Key: "sampleRate", Value: "10"}}, expected: 10},
		{name: "SampleRate", tags: []v1span.BinaryAnnotation{{Key: "SampleRate", Value: "20"}}, expected: 20},
		{name: "sampleRate wins", tags: []v1span.BinaryAnnotation{{Key: "SampleRate", Value: "20"}, {Key: "sampleRate", Value: "30"}}, expected: 30},
		{name: "zero", tags: []v1span.BinaryAnnotation{{Key: "sampleRate", Value: "0"}}, expected: 1},
		{name: "negative", tags: []v1span.BinaryAnnotation{{Key: "sampleRate", Value: "-5"}}, expected: 1},
		{name: "too large", tags: []v1span.BinaryAnnotation{{Key: "sampleRate", Value: "9999999999"}}, expected: math.MaxInt32},
		{name: "float", tags: []v1span.BinaryAnnotation{{Key: "sampleRate", Value: "4.0"}}, expected: 4},
		{name: "padded", tags: []v1span.BinaryAnnotation{{Key: "sampleRate", Value: " 7 "}}, expected: 7},
		{name: "garbage", tags: []v1span.BinaryAnnotation{{Key: "sampleRate", Value: "often"}}, expected: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			span := v1span.Span{BinaryAnnotations: tc.tags}
			assert.Equal(t, tc.expected, getSampleRate(&span))
		})
	}
}

func TestTruncateValue(t *testing.T) {
	short := "short"
	v, n := truncateValue(short)
	assert.Equal(t, short, v)
	assert.Zero(t, n)

	long := strings.Repeat("a", fieldSizeMax+10)
	v, n = truncateValue(long)
	assert.Len(t, v, fieldSizeMax)
	assert.Equal(t, 10, n)

	// a multi-byte rune straddling the limit is dropped whole
	straddle := strings.Repeat("a", fieldSizeMax-1) + "é"
	v, n = truncateValue(straddle)
	assert.Len(t, v, fieldSizeMax-1)
	assert.Equal(t, 2, n)
}

func TestIsCoreAnnotation(t *testing.T) {
	for _, v := range []string{"cs", "cr", "sr", "ss", "ms", "mr", "ws", "wr"} {
		assert.True(t, isCoreAnnotation(v), v)
	}
	for _, v := range []string{"", "CS", "retry", "error"} {
		assert.False(t, isCoreAnnotation(v), v)
	}
}
