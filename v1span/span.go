// Package v1span holds the in-memory form of a Zipkin v1 span and the
// builder decoders write into.
//
// Following Zipkin v1 conventions, zero means "absent" for TraceIDHigh,
// ParentID, Timestamp and Duration.
package v1span

import (
	"encoding/binary"
	"encoding/hex"
	"net/netip"
)

// Endpoint is the network context of a node in the service graph. Endpoints
// are shared by pointer between annotations and must not be modified once
// built.
type Endpoint struct {
	ServiceName string
	IPv4        netip.Addr
	IPv6        netip.Addr
	Port        uint16
}

// IsEmpty reports whether the endpoint carries no information at all.
func (e *Endpoint) IsEmpty() bool {
	return e == nil || (e.ServiceName == "" && !e.IPv4.IsValid() && !e.IPv6.IsValid() && e.Port == 0)
}

// Addr returns the IPv4 address if present, else the IPv6 one.
func (e *Endpoint) Addr() netip.Addr {
	if e == nil {
		return netip.Addr{}
	}
	if e.IPv4.IsValid() {
		return e.IPv4
	}
	return e.IPv6
}

type Annotation struct {
	Timestamp int64
	Value     string
	Endpoint  *Endpoint
}

// BinaryAnnotation is a tag. When Address is set the annotation carries no
// value; it marks Endpoint as the client ("ca"), server ("sa") or message
// broker ("ma") address of the span.
type BinaryAnnotation struct {
	Key      string
	Value    string
	Endpoint *Endpoint
	Address  bool
}

type Span struct {
	TraceIDHigh       uint64
	TraceID           uint64
	ID                uint64
	ParentID          uint64
	Name              string
	Timestamp         int64
	Duration          int64
	Debug             bool
	Annotations       []Annotation
	BinaryAnnotations []BinaryAnnotation
}

// FormatID renders a 64-bit id as 16 lower-case hex characters.
func FormatID(id uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return hex.EncodeToString(b[:])
}

// TraceIDHex is the 32 character trace id when the high bits are set, else
// the 16 character one.
func (s *Span) TraceIDHex() string {
	if s.TraceIDHigh != 0 {
		return FormatID(s.TraceIDHigh) + FormatID(s.TraceID)
	}
	return FormatID(s.TraceID)
}

// TraceIDBytes is the trace id as 16 big-endian bytes.
func (s *Span) TraceIDBytes() []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[:8], s.TraceIDHigh)
	binary.BigEndian.PutUint64(b[8:], s.TraceID)
	return b
}

// Tag returns the value of the first string binary annotation with the key.
func (s *Span) Tag(key string) (string, bool) {
	for i := range s.BinaryAnnotations {
		ba := &s.BinaryAnnotations[i]
		if !ba.Address && ba.Key == key {
			return ba.Value, true
		}
	}
	return "", false
}

// addressKeys are the binary annotation keys whose true boolean value marks
// an endpoint instead of carrying a value: client, server and message broker
// address.
var addressKeys = map[string]struct{}{
	"ca": {},
	"sa": {},
	"ma": {},
}

// IsAddressKey reports whether key is one of the reserved address keys.
func IsAddressKey(key string) bool {
	_, ok := addressKeys[key]
	return ok
}
