/*
File Name:  RoutingTable_test.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner
*/

package dht

import (
	"net"
	"testing"
	"time"
)

func idFromUint(n uint64) NodeId {
	id := make(NodeId, IDBytes)
	for i := 0; i < 8; i++ {
		id[IDBytes-1-i] = byte(n >> (8 * i))
	}
	return id
}

func testPeer(t *testing.T, id NodeId, ip string, port uint16) *Peer {
	t.Helper()
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		t.Fatalf("bad test IP %q", ip)
	}
	return &Peer{NodeId: id, IP: parsed, Port: port}
}

func TestMatchingBitsMSBFirst(t *testing.T) {
	a := make(NodeId, IDBytes)
	b := make(NodeId, IDBytes)
	a[0] = 0b11110000
	b[0] = 0b11110000
	b[1] = 0xFF // differs starting at bit 8

	if got := MatchingBits(a, b); got != 8 {
		t.Fatalf("MatchingBits: got %d want 8", got)
	}

	// A single differing leading bit must be detected at the MSB, not
	// somewhere in the middle of the byte (the bug spec.md §9 flags).
	c := make(NodeId, IDBytes)
	c[0] = 0b01110000
	if got := MatchingBits(a, c); got != 0 {
		t.Fatalf("MatchingBits with differing leading bit: got %d want 0", got)
	}
}

func TestAddNodeRejectsInvalidRecords(t *testing.T) {
	rt := NewRoutingTable(idFromUint(0))

	badIP := &Peer{NodeId: idFromUint(1), IP: net.IP{1, 2, 3}, Port: 100}
	if added, err := rt.AddNode(badIP); added || err != ErrInvalidPeer {
		t.Fatalf("expected rejection of bad IP length, got added=%v err=%v", added, err)
	}

	badPort := testPeer(t, idFromUint(2), "10.0.0.1", 0)
	if added, err := rt.AddNode(badPort); added || err != ErrInvalidPeer {
		t.Fatalf("expected rejection of port 0, got added=%v err=%v", added, err)
	}
}

// TestNoDuplicatePeers is spec.md §8 invariant 3 and scenario 6: re-adding
// the same (ip, port, id) must be a no-op, and by_id/bucket lengths must
// grow by exactly one for a genuinely new peer.
func TestNoDuplicatePeers(t *testing.T) {
	rt := NewRoutingTable(idFromUint(0))
	peer := testPeer(t, idFromUint(1), "10.0.0.1", 100)

	added, err := rt.AddNode(peer)
	if err != nil || !added {
		t.Fatalf("first AddNode: added=%v err=%v", added, err)
	}
	if rt.TotalNodes() != 1 {
		t.Fatalf("TotalNodes after first add: got %d want 1", rt.TotalNodes())
	}

	dup := testPeer(t, idFromUint(1), "10.0.0.1", 100)
	added, err = rt.AddNode(dup)
	if err != nil || added {
		t.Fatalf("duplicate AddNode: expected no-op, got added=%v err=%v", added, err)
	}
	if rt.TotalNodes() != 1 {
		t.Fatalf("TotalNodes after duplicate add: got %d want 1", rt.TotalNodes())
	}
}

// TestBucketDiscipline is spec.md §8 invariant 5: every active peer's
// bucket_idx equals matching_bits(self_id, peer.node_id).
func TestBucketDiscipline(t *testing.T) {
	rt := NewRoutingTable(idFromUint(0))

	for i, idVal := range []uint64{1, 2, 4, 8, 16, 1 << 20} {
		peer := testPeer(t, idFromUint(idVal), "10.0.0.1", uint16(100+i))
		if added, err := rt.AddNode(peer); err != nil || !added {
			t.Fatalf("AddNode(%d): added=%v err=%v", idVal, added, err)
		}
	}

	for _, peer := range rt.Nodes() {
		want := MatchingBits(rt.Self, peer.NodeId)
		if peer.BucketIdx != want {
			t.Fatalf("peer %x: BucketIdx=%d want %d", peer.NodeId, peer.BucketIdx, want)
		}
	}
}

// TestFindNodesOrdering is spec.md §8 invariant 4 and scenario 4.
func TestFindNodesOrdering(t *testing.T) {
	rt := NewRoutingTable(idFromUint(0))

	ids := []uint64{1, 2, 4, 8, 16, 1 << 30}
	for i, idVal := range ids {
		peer := testPeer(t, idFromUint(idVal), "10.0.0.1", uint16(200+i))
		if _, err := rt.AddNode(peer); err != nil {
			t.Fatalf("AddNode(%d): %v", idVal, err)
		}
	}

	// find-nodes(key=0): ascending id order, since distance = id XOR 0 = id.
	result := rt.FindNodes(idFromUint(0))
	if len(result) != len(ids) {
		t.Fatalf("result count: got %d want %d", len(result), len(ids))
	}
	for i := 1; i < len(result); i++ {
		if !result[i-1].NodeId.Less(result[i].NodeId) {
			t.Fatalf("result not ascending at index %d", i)
		}
	}

	// find-nodes(key=5): sorted by id XOR 5.
	result = rt.FindNodes(idFromUint(5))
	for i := 1; i < len(result); i++ {
		di := result[i-1].NodeId.Xor(idFromUint(5))
		dj := result[i].NodeId.Xor(idFromUint(5))
		if compareBytes(di, dj) > 0 {
			t.Fatalf("result not sorted by XOR distance to 5 at index %d", i)
		}
	}
}

func TestFindNodesCapsAtK(t *testing.T) {
	rt := NewRoutingTable(idFromUint(0))

	for i := 0; i < K+10; i++ {
		// Spread peers across several buckets by varying high bits so no
		// bucket exceeds K and they all land as active rather than
		// overflowing into candidates.
		id := idFromUint(uint64(i) + 1)
		id[0] = byte(i + 1)
		peer := testPeer(t, id, "10.0.1.1", uint16(300+i))
		rt.AddNode(peer)
	}

	result := rt.FindNodes(idFromUint(0))
	if len(result) > K {
		t.Fatalf("FindNodes returned %d peers, want at most %d", len(result), K)
	}
}

func TestMarkSeenPromotesCandidate(t *testing.T) {
	rt := NewRoutingTable(idFromUint(0))

	// Fill bucket 0 (peers sharing zero leading bits with self, i.e. MSB
	// set) to capacity with active peers, then add one more as a
	// candidate.
	for i := 0; i < K; i++ {
		id := make(NodeId, IDBytes)
		id[0] = 0x80
		id[IDBytes-1] = byte(i + 1)
		rt.AddNode(testPeer(t, id, "10.1.0.1", uint16(400+i)))
	}

	candidateId := make(NodeId, IDBytes)
	candidateId[0] = 0x80
	candidateId[IDBytes-1] = 0xFF
	candidate := testPeer(t, candidateId, "10.1.0.2", 500)
	added, err := rt.AddNode(candidate)
	if err != nil || !added {
		t.Fatalf("adding overflow candidate: added=%v err=%v", added, err)
	}
	if rt.TotalNodes() != K {
		t.Fatalf("expected bucket full at %d active peers, got %d", K, rt.TotalNodes())
	}

	// Remove one active peer to open a vacancy, then mark the candidate
	// seen: it should be promoted.
	firstActiveId := make(NodeId, IDBytes)
	firstActiveId[0] = 0x80
	firstActiveId[IDBytes-1] = 1
	rt.RemoveNode(firstActiveId)

	rt.MarkSeen(candidateId, time.Now)

	if rt.TotalNodes() != K {
		t.Fatalf("expected %d active peers after promotion, got %d", K, rt.TotalNodes())
	}

	found := false
	for _, p := range rt.Nodes() {
		if p.NodeId.Equal(candidateId) {
			found = true
			if p.LastSeen == nil {
				t.Fatalf("promoted candidate has nil LastSeen")
			}
		}
	}
	if !found {
		t.Fatalf("candidate was not promoted into the active set")
	}
}

// TestAllPeersIncludesCandidates is the fix for the Bootstrap gap: a
// candidate overflowing a full bucket must still be reachable, since
// Bootstrap pings everything AllPeers returns.
func TestAllPeersIncludesCandidates(t *testing.T) {
	rt := NewRoutingTable(idFromUint(0))

	for i := 0; i < K; i++ {
		id := make(NodeId, IDBytes)
		id[0] = 0x40
		id[IDBytes-1] = byte(i + 1)
		rt.AddNode(testPeer(t, id, "10.2.0.1", uint16(600+i)))
	}

	candidateId := make(NodeId, IDBytes)
	candidateId[0] = 0x40
	candidateId[IDBytes-1] = 0xFF
	candidate := testPeer(t, candidateId, "10.2.0.2", 700)
	if added, err := rt.AddNode(candidate); err != nil || !added {
		t.Fatalf("adding overflow candidate: added=%v err=%v", added, err)
	}

	all := rt.AllPeers()
	if len(all) != K+1 {
		t.Fatalf("AllPeers: got %d peers, want %d", len(all), K+1)
	}

	found := false
	for _, p := range all {
		if p.NodeId.Equal(candidateId) {
			found = true
		}
	}
	if !found {
		t.Fatalf("AllPeers did not include the overflow candidate")
	}

	if rt.TotalNodes() != K {
		t.Fatalf("Nodes/TotalNodes should still only report active peers: got %d want %d", rt.TotalNodes(), K)
	}
}

// TestBucketsExposesPeerRecords verifies Buckets returns the peer records
// themselves, not just per-bucket counts, for the status API's routing
// view.
func TestBucketsExposesPeerRecords(t *testing.T) {
	rt := NewRoutingTable(idFromUint(0))

	peer := testPeer(t, idFromUint(1), "10.3.0.1", 800)
	if _, err := rt.AddNode(peer); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	buckets := rt.Buckets()
	idx := peer.BucketIdx
	if len(buckets[idx].Active) != 1 || !buckets[idx].Active[0].NodeId.Equal(peer.NodeId) {
		t.Fatalf("Buckets()[%d].Active: got %+v, want a single entry for %x", idx, buckets[idx].Active, peer.NodeId)
	}
}
