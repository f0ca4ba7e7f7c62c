/*
File Name:  Messages_test.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner
*/

package node

import (
	"bytes"
	"net"
	"testing"
)

func TestMiscRoundTrip(t *testing.T) {
	in := Misc{RequestId: 42}
	out, err := DecodeMisc(EncodeMisc(in))
	if err != nil {
		t.Fatalf("DecodeMisc: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v want %+v", out, in)
	}
}

func TestPongRoundTrip(t *testing.T) {
	in := Pong{RequestId: 7, NodeId: bytes.Repeat([]byte{0x11}, 32)}
	out, err := DecodePong(EncodePong(in))
	if err != nil {
		t.Fatalf("DecodePong: %v", err)
	}
	if out.RequestId != in.RequestId || !bytes.Equal(out.NodeId, in.NodeId) {
		t.Fatalf("got %+v want %+v", out, in)
	}
}

func TestKeyValueRoundTrip(t *testing.T) {
	in := KeyValue{RequestId: 99, Key: bytes.Repeat([]byte{0x02}, 32), Value: []byte("hi")}
	out, err := DecodeKeyValue(EncodeKeyValue(in))
	if err != nil {
		t.Fatalf("DecodeKeyValue: %v", err)
	}
	if out.RequestId != in.RequestId || !bytes.Equal(out.Key, in.Key) || !bytes.Equal(out.Value, in.Value) {
		t.Fatalf("got %+v want %+v", out, in)
	}
}

func TestNodesRoundTrip(t *testing.T) {
	in := Nodes{
		RequestId: 5,
		Peers: []PeerRec{
			{NodeId: bytes.Repeat([]byte{0x01}, 32), IP: net.ParseIP("1.2.3.4").To4(), Port: 5860, Flags: 0},
			{NodeId: bytes.Repeat([]byte{0x02}, 32), IP: net.ParseIP("::1"), Port: 1, Flags: 7},
		},
	}

	out, err := DecodeNodes(EncodeNodes(in))
	if err != nil {
		t.Fatalf("DecodeNodes: %v", err)
	}
	if out.RequestId != in.RequestId {
		t.Fatalf("request id mismatch")
	}
	if len(out.Peers) != len(in.Peers) {
		t.Fatalf("peer count mismatch: got %d want %d", len(out.Peers), len(in.Peers))
	}
	for i := range in.Peers {
		if !bytes.Equal(out.Peers[i].NodeId, in.Peers[i].NodeId) {
			t.Fatalf("peer %d node id mismatch", i)
		}
		if !out.Peers[i].IP.Equal(in.Peers[i].IP) {
			t.Fatalf("peer %d ip mismatch: got %v want %v", i, out.Peers[i].IP, in.Peers[i].IP)
		}
		if out.Peers[i].Port != in.Peers[i].Port || out.Peers[i].Flags != in.Peers[i].Flags {
			t.Fatalf("peer %d port/flags mismatch", i)
		}
	}
}

func TestDecodeKeyValueRejectsTruncated(t *testing.T) {
	raw := EncodeKeyValue(KeyValue{RequestId: 1, Key: bytes.Repeat([]byte{1}, 32), Value: []byte("value")})
	if _, err := DecodeKeyValue(raw[:len(raw)-2]); err != ErrMalformedPayload {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}
