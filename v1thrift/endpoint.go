package v1thrift

import (
	"encoding/binary"
	"net/netip"
	"strings"

	"github.com/honeycombio/zipkinv1/thrift"
	"github.com/honeycombio/zipkinv1/v1span"
)

var (
	endpointIPv4        = thrift.Field{Type: thrift.TypeI32, ID: 1}
	endpointPort        = thrift.Field{Type: thrift.TypeI16, ID: 2}
	endpointServiceName = thrift.Field{Type: thrift.TypeString, ID: 3}
	endpointIPv6        = thrift.Field{Type: thrift.TypeString, ID: 4}
)

// ReadEndpoint decodes a zipkincore.Endpoint struct. It returns nil when the
// struct carries nothing usable: zero ipv4, zero port and an empty service
// name are all treated as unset.
func ReadEndpoint(b *thrift.ReadBuffer) (*v1span.Endpoint, error) {
	var ep v1span.Endpoint
	for {
		field, err := thrift.ReadField(b)
		if err != nil {
			return nil, err
		}
		if field.IsStop() {
			break
		}

		switch field {
		case endpointIPv4:
			v, err := b.ReadInt32()
			if err != nil {
				return nil, err
			}
			if v != 0 {
				var ip [4]byte
				binary.BigEndian.PutUint32(ip[:], uint32(v))
				ep.IPv4 = netip.AddrFrom4(ip)
			}
		case endpointPort:
			v, err := b.ReadInt16()
			if err != nil {
				return nil, err
			}
			ep.Port = uint16(v)
		case endpointServiceName:
			v, err := b.ReadString()
			if err != nil {
				return nil, err
			}
			ep.ServiceName = strings.ToLower(v)
		case endpointIPv6:
			raw, err := b.ReadBinary()
			if err != nil {
				return nil, err
			}
			setIPv6(&ep, raw)
		default:
			if err := thrift.Skip(b, field.Type); err != nil {
				return nil, err
			}
		}
	}

	if ep.IsEmpty() {
		return nil, nil
	}
	return &ep, nil
}

// setIPv6 ignores anything but a 16 byte address. IPv4-mapped addresses are
// folded into the IPv4 slot when that is still empty.
func setIPv6(ep *v1span.Endpoint, raw []byte) {
	if len(raw) != 16 {
		return
	}
	addr := netip.AddrFrom16([16]byte(raw))
	if addr.IsUnspecified() {
		return
	}
	if addr.Is4In6() {
		if !ep.IPv4.IsValid() {
			ep.IPv4 = addr.Unmap()
		}
		return
	}
	ep.IPv6 = addr
}
