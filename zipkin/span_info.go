package zipkin

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/honeycombio/zipkinv1/v1span"
)

const defaultSampleRate = int32(1)

// Core annotations mark the RPC and messaging lifecycle of a span. They are
// folded into the span's kind and duration instead of becoming span events.
const (
	annotationClientSend    = "cs"
	annotationClientRecv    = "cr"
	annotationServerSend    = "ss"
	annotationServerRecv    = "sr"
	annotationMessageSend   = "ms"
	annotationMessageRecv   = "mr"
	annotationWireSend      = "ws"
	annotationWireRecv      = "wr"
	binaryAnnotationLocal   = "lc"
	binaryAnnotationError   = "error"
	binaryAnnotationClient  = "ca"
	binaryAnnotationServer  = "sa"
	binaryAnnotationBroker  = "ma"
	spanKindClient          = "client"
	spanKindServer          = "server"
	spanKindProducer        = "producer"
	spanKindConsumer        = "consumer"
	spanKindInternal        = "internal"
	addressAttributesClient = "client."
	addressAttributesServer = "server."
	addressAttributesBroker = "broker."
)

func isCoreAnnotation(value string) bool {
	switch value {
	case annotationClientSend, annotationClientRecv,
		annotationServerSend, annotationServerRecv,
		annotationMessageSend, annotationMessageRecv,
		annotationWireSend, annotationWireRecv:
		return true
	}
	return false
}

// spanInfo is everything derived from a span before its attributes are written.
type spanInfo struct {
	traceID     string
	spanID      string
	parentID    string
	kind        string
	serviceName string
	startMicros int64
	durationMs  float64
	sampleRate  int32
	isError     bool
	errMessage  string
}

func newSpanInfo(span *v1span.Span) spanInfo {
	info := spanInfo{
		traceID:     span.TraceIDHex(),
		spanID:      v1span.FormatID(span.ID),
		kind:        getSpanKind(span),
		serviceName: getServiceName(span),
		startMicros: getStartMicros(span),
		durationMs:  microsToMillis(getDurationMicros(span)),
		sampleRate:  getSampleRate(span),
	}
	if span.ParentID != 0 {
		info.parentID = v1span.FormatID(span.ParentID)
	}
	if msg, ok := span.Tag(binaryAnnotationError); ok {
		info.isError = true
		info.errMessage = msg
	}
	return info
}

// timestamp is the span start, or the zero time when the span carries no
// timing at all and the receive time should be used instead.
func (si spanInfo) timestamp() time.Time {
	if si.startMicros == 0 {
		return time.Time{}
	}
	return time.UnixMicro(si.startMicros).UTC()
}

func hasAnnotation(span *v1span.Span, value string) bool {
	for i := range span.Annotations {
		if span.Annotations[i].Value == value {
			return true
		}
	}
	return false
}

func hasAddress(span *v1span.Span, key string) bool {
	for i := range span.BinaryAnnotations {
		ba := &span.BinaryAnnotations[i]
		if ba.Address && ba.Key == key {
			return true
		}
	}
	return false
}

// getSpanKind follows the Zipkin v1 to v2 conversion rules. The client side
// wins when one span carries both sides of an RPC.
func getSpanKind(span *v1span.Span) string {
	switch {
	case hasAnnotation(span, annotationClientSend) || hasAnnotation(span, annotationClientRecv):
		return spanKindClient
	case hasAnnotation(span, annotationServerRecv) || hasAnnotation(span, annotationServerSend):
		return spanKindServer
	case hasAnnotation(span, annotationMessageSend):
		return spanKindProducer
	case hasAnnotation(span, annotationMessageRecv):
		return spanKindConsumer
	case hasAddress(span, binaryAnnotationServer):
		return spanKindClient
	case hasAddress(span, binaryAnnotationClient):
		return spanKindServer
	}
	return spanKindInternal
}

func getServiceName(span *v1span.Span) string {
	var local []string
	switch getSpanKind(span) {
	case spanKindClient:
		local = []string{annotationClientSend, annotationClientRecv}
	case spanKindServer:
		local = []string{annotationServerRecv, annotationServerSend}
	case spanKindProducer:
		local = []string{annotationMessageSend}
	case spanKindConsumer:
		local = []string{annotationMessageRecv}
	}
	for _, value := range local {
		for i := range span.Annotations {
			a := &span.Annotations[i]
			if a.Value == value && a.Endpoint != nil && a.Endpoint.ServiceName != "" {
				return a.Endpoint.ServiceName
			}
		}
	}
	for i := range span.BinaryAnnotations {
		ba := &span.BinaryAnnotations[i]
		if ba.Key == binaryAnnotationLocal && ba.Endpoint != nil && ba.Endpoint.ServiceName != "" {
			return ba.Endpoint.ServiceName
		}
	}
	for i := range span.Annotations {
		if ep := span.Annotations[i].Endpoint; ep != nil && ep.ServiceName != "" {
			return ep.ServiceName
		}
	}
	for i := range span.BinaryAnnotations {
		ba := &span.BinaryAnnotations[i]
		if !ba.Address && ba.Endpoint != nil && ba.Endpoint.ServiceName != "" {
			return ba.Endpoint.ServiceName
		}
	}
	return ""
}

func getStartMicros(span *v1span.Span) int64 {
	if span.Timestamp != 0 {
		return span.Timestamp
	}
	var start int64
	for i := range span.Annotations {
		ts := span.Annotations[i].Timestamp
		if start == 0 || ts < start {
			start = ts
		}
	}
	return start
}

func annotationTimestamp(span *v1span.Span, value string) int64 {
	for i := range span.Annotations {
		if span.Annotations[i].Value == value {
			return span.Annotations[i].Timestamp
		}
	}
	return 0
}

func getDurationMicros(span *v1span.Span) int64 {
	if span.Duration != 0 {
		return span.Duration
	}
	pairs := [][2]string{
		{annotationClientSend, annotationClientRecv},
		{annotationServerRecv, annotationServerSend},
	}
	for _, pair := range pairs {
		begin := annotationTimestamp(span, pair[0])
		end := annotationTimestamp(span, pair[1])
		if begin != 0 && end != 0 {
			return end - begin
		}
	}
	return 0
}

func getSampleRateKey(span *v1span.Span) string {
	if _, ok := span.Tag("sampleRate"); ok {
		return "sampleRate"
	}
	if _, ok := span.Tag("SampleRate"); ok {
		return "SampleRate"
	}
	return ""
}

func getSampleRate(span *v1span.Span) int32 {
	sampleRateKey := getSampleRateKey(span)
	if sampleRateKey == "" {
		return defaultSampleRate
	}
	sampleRate := defaultSampleRate
	v, _ := span.Tag(sampleRateKey)
	v = strings.TrimSpace(v)
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		switch {
		case i > math.MaxInt32:
			sampleRate = math.MaxInt32
		case i < 0:
			sampleRate = defaultSampleRate
		default:
			sampleRate = int32(i)
		}
	} else if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 1 {
		sampleRate = int32(min(f, math.MaxInt32))
	}
	// A sample rate of 0 is not meaningful; 1 means the span was not sampled.
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
	}
	return sampleRate
}

// truncateValue limits a string attribute to fieldSizeMax bytes without
// splitting a UTF-8 sequence, returning the number of bytes removed.
func truncateValue(value string) (string, int) {
	if len(value) <= fieldSizeMax {
		return value, 0
	}
	cut := fieldSizeMax
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut], len(value) - cut
}

func addressPrefix(key string) string {
	switch key {
	case binaryAnnotationClient:
		return addressAttributesClient
	case binaryAnnotationServer:
		return addressAttributesServer
	case binaryAnnotationBroker:
		return addressAttributesBroker
	}
	return ""
}

func isSampleRateKey(key string) bool {
	return key == "sampleRate" || key == "SampleRate"
}
