package zipkin

import (
	"context"
	"errors"
	"time"

	"github.com/tinylib/msgp/msgp"
)

type TranslateResultMsgp struct {
	RequestSize int
	Batches     []BatchMsgp
}

// BatchMsgp represents Honeycomb events grouped by their target dataset
type BatchMsgp struct {
	Dataset string
	Events  []EventMsgp
}

// EventMsgp represents a single Honeycomb event
type EventMsgp struct {
	// Here, Attributes is a map[string]any which is messagepack-encoded.
	Attributes []byte
	Timestamp  time.Time
	SampleRate int32
}

// Holds messagepack-encoded keyvalues behind a map16 header whose count is
// filled in by finalize.
type msgpAttributes struct {
	buf   []byte
	count int
}

func newMsgpAttributes() *msgpAttributes {
	m := &msgpAttributes{buf: make([]byte, 0, 512)}
	m.buf = append(m.buf, 0xde, 0, 0)
	return m
}

func (b *msgpAttributes) addString(key string, value string) {
	b.buf = msgp.AppendString(b.buf, key)
	b.buf = msgp.AppendString(b.buf, value)
	b.count++
}

// addInt64 adds a string key with int64 value
func (b *msgpAttributes) addInt64(key string, value int64) {
	b.buf = msgp.AppendString(b.buf, key)
	b.buf = msgp.AppendInt64(b.buf, value)
	b.count++
}

// addFloat64 adds a string key with float64 value
func (b *msgpAttributes) addFloat64(key string, value float64) {
	b.buf = msgp.AppendString(b.buf, key)
	b.buf = msgp.AppendFloat64(b.buf, value)
	b.count++
}

// addBool adds a string key with bool value
func (b *msgpAttributes) addBool(key string, value bool) {
	b.buf = msgp.AppendString(b.buf, key)
	b.buf = msgp.AppendBool(b.buf, value)
	b.count++
}

// Returns serialized msgp map including the header, suitable for transmission.
func (b *msgpAttributes) finalize() ([]byte, error) {
	if b.count > 0xffff {
		return nil, errors.New("too many attributes")
	}
	b.buf[1] = byte(b.count >> 8)
	b.buf[2] = byte(b.count)
	return b.buf, nil
}

// TranslateTraceRequestDirectMsgp translates an uncompressed Zipkin v1 payload
// into Honeycomb-friendly structure with attributes already serialized as
// messagepack maps, so callers forwarding events never build intermediate
// maps. Batching and attributes match TranslateTraceRequest.
func TranslateTraceRequestDirectMsgp(ctx context.Context, data []byte, ri RequestInfo) (*TranslateResultMsgp, error) {
	if err := ri.ValidateTracesHeaders(); err != nil {
		return nil, err
	}
	spans, err := decodeSpans(ctx, data, ri.ContentType)
	if err != nil {
		return nil, err
	}

	result := &TranslateResultMsgp{RequestSize: len(data)}
	batchIndex := map[string]int{}
	for _, span := range spans {
		info := newSpanInfo(span)
		dataset := getDataset(ri, info.serviceName)
		i, ok := batchIndex[dataset]
		if !ok {
			i = len(result.Batches)
			batchIndex[dataset] = i
			result.Batches = append(result.Batches, BatchMsgp{Dataset: dataset})
		}
		batch := &result.Batches[i]

		emit := func(attrs *msgpAttributes, timestamp time.Time) error {
			attrBuf, err := attrs.finalize()
			if err != nil {
				return err
			}
			batch.Events = append(batch.Events, EventMsgp{
				Attributes: attrBuf,
				Timestamp:  timestamp,
				SampleRate: info.sampleRate,
			})
			return nil
		}
		if err := translateSpan(span, info, newMsgpAttributes, emit); err != nil {
			return nil, err
		}
	}
	return result, nil
}
