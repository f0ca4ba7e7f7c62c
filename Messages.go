/*
File Name:  Messages.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner

Payload schemas for the seven RPC commands (spec section 6). The source
this was distilled from uses a schema compiler; since that compiler is
out of scope here, payloads are encoded with a small explicit binary
codec in the same hand-rolled, fixed-offset style the teacher's own
message layer uses for MessageAnnouncement/MessageResponse.

Every payload starts with an 8-byte little-endian request_id.
*/

package node

import (
	"encoding/binary"
	"errors"
	"net"
)

// ErrMalformedPayload is returned when a payload cannot be parsed against
// its schema. The dispatcher drops the datagram and logs it.
var ErrMalformedPayload = errors.New("dht: malformed payload")

// Misc carries only a request id. Used by ping, err and ok.
type Misc struct {
	RequestId uint64
}

// Pong replies to a ping with the responder's node id.
type Pong struct {
	RequestId uint64
	NodeId    []byte
}

// Key carries a single opaque lookup key. Used by find-nodes and find-value.
type Key struct {
	RequestId uint64
	Key       []byte
}

// KeyValue carries a key and its associated value. Used by store and data.
type KeyValue struct {
	RequestId uint64
	Key       []byte
	Value     []byte
}

// PeerRec describes a single peer as carried inside a Nodes payload.
type PeerRec struct {
	NodeId []byte
	IP     net.IP
	Port   uint16
	Flags  uint32
}

// Nodes carries a set of peer records. Used by the nodes command.
type Nodes struct {
	RequestId uint64
	Peers     []PeerRec
}

// EncodeMisc serializes a Misc payload.
func EncodeMisc(m Misc) []byte {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint64(raw[0:8], m.RequestId)
	return raw
}

// DecodeMisc parses a Misc payload.
func DecodeMisc(data []byte) (m Misc, err error) {
	if len(data) < 8 {
		return Misc{}, ErrMalformedPayload
	}
	m.RequestId = binary.LittleEndian.Uint64(data[0:8])
	return m, nil
}

// EncodePong serializes a Pong payload.
func EncodePong(p Pong) []byte {
	raw := make([]byte, 8+1+len(p.NodeId))
	binary.LittleEndian.PutUint64(raw[0:8], p.RequestId)
	raw[8] = byte(len(p.NodeId))
	copy(raw[9:], p.NodeId)
	return raw
}

// DecodePong parses a Pong payload.
func DecodePong(data []byte) (p Pong, err error) {
	if len(data) < 9 {
		return Pong{}, ErrMalformedPayload
	}
	p.RequestId = binary.LittleEndian.Uint64(data[0:8])
	idLen := int(data[8])
	if len(data) < 9+idLen {
		return Pong{}, ErrMalformedPayload
	}
	p.NodeId = append([]byte(nil), data[9:9+idLen]...)
	return p, nil
}

// EncodeKey serializes a Key payload.
func EncodeKey(k Key) []byte {
	raw := make([]byte, 8+1+len(k.Key))
	binary.LittleEndian.PutUint64(raw[0:8], k.RequestId)
	raw[8] = byte(len(k.Key))
	copy(raw[9:], k.Key)
	return raw
}

// DecodeKey parses a Key payload.
func DecodeKey(data []byte) (k Key, err error) {
	if len(data) < 9 {
		return Key{}, ErrMalformedPayload
	}
	k.RequestId = binary.LittleEndian.Uint64(data[0:8])
	keyLen := int(data[8])
	if len(data) < 9+keyLen {
		return Key{}, ErrMalformedPayload
	}
	k.Key = append([]byte(nil), data[9:9+keyLen]...)
	return k, nil
}

// EncodeKeyValue serializes a KeyValue payload.
func EncodeKeyValue(kv KeyValue) []byte {
	raw := make([]byte, 8+1+len(kv.Key)+4+len(kv.Value))
	binary.LittleEndian.PutUint64(raw[0:8], kv.RequestId)
	raw[8] = byte(len(kv.Key))
	offset := 9
	copy(raw[offset:], kv.Key)
	offset += len(kv.Key)
	binary.LittleEndian.PutUint32(raw[offset:offset+4], uint32(len(kv.Value)))
	offset += 4
	copy(raw[offset:], kv.Value)
	return raw
}

// DecodeKeyValue parses a KeyValue payload.
func DecodeKeyValue(data []byte) (kv KeyValue, err error) {
	if len(data) < 9 {
		return KeyValue{}, ErrMalformedPayload
	}
	kv.RequestId = binary.LittleEndian.Uint64(data[0:8])
	keyLen := int(data[8])
	offset := 9
	if len(data) < offset+keyLen+4 {
		return KeyValue{}, ErrMalformedPayload
	}
	kv.Key = append([]byte(nil), data[offset:offset+keyLen]...)
	offset += keyLen
	valueLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if len(data) < offset+valueLen {
		return KeyValue{}, ErrMalformedPayload
	}
	kv.Value = append([]byte(nil), data[offset:offset+valueLen]...)
	return kv, nil
}

// encodePeerRec appends a single peer record: 1-byte id length, id,
// 1-byte IP length (4 or 16), IP bytes, 2-byte port, 4-byte flags.
func encodePeerRec(raw []byte, p PeerRec) []byte {
	raw = append(raw, byte(len(p.NodeId)))
	raw = append(raw, p.NodeId...)

	ip := p.IP.To4()
	if ip == nil {
		ip = p.IP.To16()
	}
	raw = append(raw, byte(len(ip)))
	raw = append(raw, ip...)

	portBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(portBuf, p.Port)
	raw = append(raw, portBuf...)

	flagsBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(flagsBuf, p.Flags)
	raw = append(raw, flagsBuf...)

	return raw
}

// decodePeerRec parses a single peer record starting at offset, returning
// the number of bytes consumed.
func decodePeerRec(data []byte, offset int) (p PeerRec, consumed int, err error) {
	if len(data) < offset+1 {
		return PeerRec{}, 0, ErrMalformedPayload
	}
	idLen := int(data[offset])
	cursor := offset + 1
	if len(data) < cursor+idLen+1 {
		return PeerRec{}, 0, ErrMalformedPayload
	}
	p.NodeId = append([]byte(nil), data[cursor:cursor+idLen]...)
	cursor += idLen

	ipLen := int(data[cursor])
	cursor++
	if ipLen != 4 && ipLen != 16 {
		return PeerRec{}, 0, ErrMalformedPayload
	}
	if len(data) < cursor+ipLen+2+4 {
		return PeerRec{}, 0, ErrMalformedPayload
	}
	p.IP = append(net.IP(nil), data[cursor:cursor+ipLen]...)
	cursor += ipLen

	p.Port = binary.LittleEndian.Uint16(data[cursor : cursor+2])
	cursor += 2
	p.Flags = binary.LittleEndian.Uint32(data[cursor : cursor+4])
	cursor += 4

	return p, cursor - offset, nil
}

// EncodeNodes serializes a Nodes payload.
func EncodeNodes(n Nodes) []byte {
	raw := make([]byte, 0, 8+2+32*len(n.Peers))
	reqBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(reqBuf, n.RequestId)
	raw = append(raw, reqBuf...)

	countBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(countBuf, uint16(len(n.Peers)))
	raw = append(raw, countBuf...)

	for _, p := range n.Peers {
		raw = encodePeerRec(raw, p)
	}

	return raw
}

// DecodeNodes parses a Nodes payload.
func DecodeNodes(data []byte) (n Nodes, err error) {
	if len(data) < 10 {
		return Nodes{}, ErrMalformedPayload
	}
	n.RequestId = binary.LittleEndian.Uint64(data[0:8])
	count := int(binary.LittleEndian.Uint16(data[8:10]))

	offset := 10
	for i := 0; i < count; i++ {
		p, consumed, err := decodePeerRec(data, offset)
		if err != nil {
			return Nodes{}, err
		}
		n.Peers = append(n.Peers, p)
		offset += consumed
	}

	return n, nil
}
