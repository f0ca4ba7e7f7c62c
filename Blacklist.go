/*
File Name:  Blacklist.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner
*/

package node

import (
	"encoding/hex"
	"sync"

	"github.com/kadcore/node/store"
)

// Blacklist tracks node ids that add_node must reject regardless of what
// the routing table's own duplicate checks would otherwise allow. It is
// consulted by the Node before forwarding a peer to the routing table.
type Blacklist struct {
	reasons  map[string]string
	Database store.Store // Optional durable backend. Nil keeps the blacklist in-memory only.
	sync.RWMutex
}

// NewBlacklist creates a Blacklist, optionally backed by a durable store.
func NewBlacklist(backend store.Store) *Blacklist {
	return &Blacklist{
		reasons:  make(map[string]string),
		Database: backend,
	}
}

// Add records nodeId as blacklisted for reason.
func (b *Blacklist) Add(nodeId []byte, reason string) {
	b.Lock()
	defer b.Unlock()

	key := hex.EncodeToString(nodeId)
	b.reasons[key] = reason

	if b.Database != nil {
		b.Database.Set(nodeId, []byte(reason))
	}
}

// Contains reports whether nodeId is blacklisted.
func (b *Blacklist) Contains(nodeId []byte) bool {
	b.RLock()
	defer b.RUnlock()

	if _, found := b.reasons[hex.EncodeToString(nodeId)]; found {
		return true
	}

	if b.Database != nil {
		if _, found := b.Database.Get(nodeId); found {
			return true
		}
	}

	return false
}

// Remove clears nodeId from the blacklist.
func (b *Blacklist) Remove(nodeId []byte) {
	b.Lock()
	defer b.Unlock()

	delete(b.reasons, hex.EncodeToString(nodeId))

	if b.Database != nil {
		b.Database.Delete(nodeId)
	}
}
