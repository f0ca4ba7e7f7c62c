/*
File Name:  Identity.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner

Derives a NodeId from an arbitrary seed. Adapted from the teacher's
Packet Encoding.go, which abstracts its hash function as hashData and uses
it (there, to authenticate packets over Salsa20/btcec). No authentication
or signing is in scope here (spec.md explicitly excludes it); this keeps
only the hashing half, used to turn an operator-supplied seed (or nothing,
via a random one) into a well-distributed identifier.
*/

package dht

import (
	"crypto/rand"

	"lukechampine.com/blake3"
)

// DeriveNodeId hashes seed down to a NodeId of IDBytes length using BLAKE3,
// the teacher's hash function of choice.
func DeriveNodeId(seed []byte) NodeId {
	digest := blake3.Sum256(seed)
	id := make(NodeId, IDBytes)
	// Sum256 yields 32 bytes; for IDBytes > 32 the remaining bytes are
	// filled with repeated hashing over the growing digest, keeping the
	// derivation fully deterministic for a given seed.
	copy(id, digest[:])
	for filled := 32; filled < IDBytes; filled += 32 {
		digest = blake3.Sum256(digest[:])
		n := copy(id[filled:], digest[:])
		_ = n
	}
	return id
}

// RandomNodeId generates a random NodeId using a CSPRNG seed. Useful for
// tests and for an operator who does not care about a stable identity
// across restarts.
func RandomNodeId() (NodeId, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return DeriveNodeId(seed), nil
}
