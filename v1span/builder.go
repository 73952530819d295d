package v1span

// SpanBuilder accumulates one span at a time. It is owned by a single
// decoder and is not safe for concurrent use; Clear it to start the next
// span while keeping its allocated capacity.
type SpanBuilder struct {
	traceIDHigh       uint64
	traceID           uint64
	id                uint64
	parentID          uint64
	name              string
	timestamp         int64
	duration          int64
	debug             bool
	annotations       []Annotation
	binaryAnnotations []BinaryAnnotation
}

func NewSpanBuilder() *SpanBuilder {
	return &SpanBuilder{}
}

func (b *SpanBuilder) Clear() *SpanBuilder {
	b.traceIDHigh = 0
	b.traceID = 0
	b.id = 0
	b.parentID = 0
	b.name = ""
	b.timestamp = 0
	b.duration = 0
	b.debug = false
	clear(b.annotations)
	b.annotations = b.annotations[:0]
	clear(b.binaryAnnotations)
	b.binaryAnnotations = b.binaryAnnotations[:0]
	return b
}

func (b *SpanBuilder) TraceIDHigh(v uint64) *SpanBuilder {
	b.traceIDHigh = v
	return b
}

func (b *SpanBuilder) TraceID(v uint64) *SpanBuilder {
	b.traceID = v
	return b
}

func (b *SpanBuilder) ID(v uint64) *SpanBuilder {
	b.id = v
	return b
}

func (b *SpanBuilder) ParentID(v uint64) *SpanBuilder {
	b.parentID = v
	return b
}

func (b *SpanBuilder) Name(v string) *SpanBuilder {
	b.name = v
	return b
}

// Timestamp sets the start time in epoch microseconds.
func (b *SpanBuilder) Timestamp(v int64) *SpanBuilder {
	b.timestamp = v
	return b
}

// Duration sets the duration in microseconds.
func (b *SpanBuilder) Duration(v int64) *SpanBuilder {
	b.duration = v
	return b
}

func (b *SpanBuilder) Debug(v bool) *SpanBuilder {
	b.debug = v
	return b
}

// AddAnnotation appends an event. An empty endpoint is recorded as absent.
func (b *SpanBuilder) AddAnnotation(timestamp int64, value string, endpoint *Endpoint) *SpanBuilder {
	if endpoint.IsEmpty() {
		endpoint = nil
	}
	b.annotations = append(b.annotations, Annotation{Timestamp: timestamp, Value: value, Endpoint: endpoint})
	return b
}

// AddBinaryAnnotation appends a string tag. An empty endpoint is recorded as
// absent.
func (b *SpanBuilder) AddBinaryAnnotation(key, value string, endpoint *Endpoint) *SpanBuilder {
	if endpoint.IsEmpty() {
		endpoint = nil
	}
	b.binaryAnnotations = append(b.binaryAnnotations, BinaryAnnotation{Key: key, Value: value, Endpoint: endpoint})
	return b
}

// AddAddress appends an address marker. Markers without an endpoint carry
// nothing and are ignored.
func (b *SpanBuilder) AddAddress(key string, endpoint *Endpoint) *SpanBuilder {
	if endpoint.IsEmpty() {
		return b
	}
	b.binaryAnnotations = append(b.binaryAnnotations, BinaryAnnotation{Key: key, Endpoint: endpoint, Address: true})
	return b
}

// Build returns the accumulated span. The result does not share memory with
// the builder, so it stays valid after Clear.
func (b *SpanBuilder) Build() *Span {
	s := &Span{
		TraceIDHigh: b.traceIDHigh,
		TraceID:     b.traceID,
		ID:          b.id,
		ParentID:    b.parentID,
		Name:        b.name,
		Timestamp:   b.timestamp,
		Duration:    b.duration,
		Debug:       b.debug,
	}
	if len(b.annotations) > 0 {
		s.Annotations = append([]Annotation(nil), b.annotations...)
	}
	if len(b.binaryAnnotations) > 0 {
		s.BinaryAnnotations = append([]BinaryAnnotation(nil), b.binaryAnnotations...)
	}
	return s
}
