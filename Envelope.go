/*
File Name:  Envelope.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner

Basic envelope structure of ALL packets:
Offset  Size  Info
0       4     Magic = "DHT1"
4       12    Command, ASCII, NUL-padded on the right
16      4     Payload length (u32)
20      4     Checksum = first 4 bytes of sha256(sha256(payload))
24      ?     Payload

Unlike the legacy packet format this replaces, envelopes carry no
signature and no encryption: authentication of the transport is out of
scope here. The checksum exists only to catch corruption/truncation, not
to authenticate the sender.
*/

package node

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
)

// Envelope is a decoded, integrity-checked message.
type Envelope struct {
	Command string
	Payload []byte
}

const (
	magicSize       = 4
	commandSize     = 12
	headerSize      = magicSize + commandSize + 4 + 4 // = 24
	maxPayloadSize  = 16 * 1024 * 1024                 // 16 MiB
	checksumSize    = 4
)

var envelopeMagic = [magicSize]byte{'D', 'H', 'T', '1'}

// Frame errors. The datagram is always dropped on any of these; they are
// never propagated past the codec.
var (
	ErrShortFrame    = errors.New("dht: short frame")
	ErrBadMagic      = errors.New("dht: bad magic")
	ErrOversize      = errors.New("dht: oversize payload")
	ErrTruncated     = errors.New("dht: truncated payload")
	ErrBadChecksum   = errors.New("dht: bad checksum")
	ErrCommandTooLong = errors.New("dht: command longer than 12 bytes")
)

// DecodeEnvelope parses a received datagram buffer into an Envelope.
func DecodeEnvelope(raw []byte) (env *Envelope, err error) {
	if len(raw) < headerSize {
		return nil, ErrShortFrame
	}

	if raw[0] != envelopeMagic[0] || raw[1] != envelopeMagic[1] || raw[2] != envelopeMagic[2] || raw[3] != envelopeMagic[3] {
		return nil, ErrBadMagic
	}

	command := stripNUL(raw[magicSize : magicSize+commandSize])

	payloadLenOffset := magicSize + commandSize
	payloadLen := binary.LittleEndian.Uint32(raw[payloadLenOffset : payloadLenOffset+4])
	if payloadLen > maxPayloadSize {
		return nil, ErrOversize
	}

	checksumOffset := payloadLenOffset + 4
	if uint32(len(raw)) < headerSize+payloadLen {
		return nil, ErrTruncated
	}

	payload := raw[headerSize : headerSize+int(payloadLen)]

	var checksum [checksumSize]byte
	copy(checksum[:], raw[checksumOffset:checksumOffset+checksumSize])
	if checksum != checksumOf(payload) {
		return nil, ErrBadChecksum
	}

	return &Envelope{Command: command, Payload: payload}, nil
}

// EncodeEnvelope frames command and payload as a wire envelope.
func EncodeEnvelope(command string, payload []byte) (raw []byte, err error) {
	if len(command) > commandSize {
		return nil, ErrCommandTooLong
	}

	raw = make([]byte, headerSize+len(payload))
	copy(raw[0:magicSize], envelopeMagic[:])
	copy(raw[magicSize:magicSize+commandSize], command)

	payloadLenOffset := magicSize + commandSize
	binary.LittleEndian.PutUint32(raw[payloadLenOffset:payloadLenOffset+4], uint32(len(payload)))

	checksumOffset := payloadLenOffset + 4
	checksum := checksumOf(payload)
	copy(raw[checksumOffset:checksumOffset+checksumSize], checksum[:])

	copy(raw[headerSize:], payload)

	return raw, nil
}

// checksumOf computes the first 4 bytes of sha256(sha256(payload)), the
// Bitcoin-style double digest the wire format requires bit-exactly.
func checksumOf(payload []byte) (checksum [checksumSize]byte) {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	copy(checksum[:], second[:checksumSize])
	return checksum
}

func stripNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
