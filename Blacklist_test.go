/*
File Name:  Blacklist_test.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner
*/

package node

import (
	"bytes"
	"testing"

	"github.com/kadcore/node/store"
)

func TestBlacklistAddContainsRemove(t *testing.T) {
	b := NewBlacklist(nil)
	id := bytes.Repeat([]byte{0x44}, 32)

	if b.Contains(id) {
		t.Fatalf("expected id to not be blacklisted initially")
	}

	b.Add(id, "test reason")
	if !b.Contains(id) {
		t.Fatalf("expected id to be blacklisted after Add")
	}

	b.Remove(id)
	if b.Contains(id) {
		t.Fatalf("expected id to no longer be blacklisted after Remove")
	}
}

func TestBlacklistFallsThroughToBackend(t *testing.T) {
	backend := store.NewMemory()
	id := bytes.Repeat([]byte{0x55}, 32)
	backend.Set(id, []byte("pre-existing ban"))

	b := NewBlacklist(backend)
	if !b.Contains(id) {
		t.Fatalf("expected backend-only entry to be found via Contains")
	}
}
