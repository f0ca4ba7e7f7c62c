/*
File Name:  Filter.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner

Filters allow the caller to intercept events. The filter functions must
not modify any data.
*/

package node

import (
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/kadcore/node/dht"
)

// Filters contains all functions to install the hook. Use nil for unused.
// The functions are called sequentially and block execution; if a filter
// takes a long time it should start a goroutine.
type Filters struct {
	// NewPeer is called every time add_node accepts a peer not previously
	// known (active or candidate).
	NewPeer func(peer *dht.Peer)

	// LogError is called for any error the node encounters outside the
	// reply-with-err path (frame errors, schema errors, transport errors).
	LogError func(function, format string, v ...interface{})

	// IncomingRequest receives every successfully decoded inbound command,
	// before the handler runs.
	IncomingRequest func(peer *dht.Peer, command string, requestId uint64)

	// ReplySent is called after an envelope has been written to the socket:
	// a reply to an inbound request, or a ping sent by Bootstrap.
	ReplySent func(peer *dht.Peer, command string, requestId uint64)

	// StoreResult is called after a store request has been evaluated, ok
	// reporting whether the value was accepted into the cache.
	StoreResult func(peer *dht.Peer, key []byte, ok bool)
}

func (n *Node) initFilters() {
	// Default filters are blank functions so callers elsewhere can invoke
	// them unconditionally, without nil checks.
	if n.Filters.NewPeer == nil {
		n.Filters.NewPeer = func(peer *dht.Peer) {}
	}
	if n.Filters.LogError == nil {
		n.Filters.LogError = func(function, format string, v ...interface{}) {}
	}
	if n.Filters.IncomingRequest == nil {
		n.Filters.IncomingRequest = func(peer *dht.Peer, command string, requestId uint64) {}
	}
	if n.Filters.ReplySent == nil {
		n.Filters.ReplySent = func(peer *dht.Peer, command string, requestId uint64) {}
	}
	if n.Filters.StoreResult == nil {
		n.Filters.StoreResult = func(peer *dht.Peer, key []byte, ok bool) {}
	}
}

// multiWriter duplicates writes to a dynamic set of subscribed writers,
// e.g. the log file and the status API's WebSocket feed.
type multiWriter struct {
	writers map[uuid.UUID]io.Writer
	sync.Mutex
}

func newMultiWriter() *multiWriter {
	return &multiWriter{writers: make(map[uuid.UUID]io.Writer)}
}

// Subscribe adds writer to the set of writers that receive every Write.
func (m *multiWriter) Subscribe(writer io.Writer) (id uuid.UUID) {
	m.Lock()
	defer m.Unlock()

	id = uuid.New()
	m.writers[id] = writer

	return id
}

// Unsubscribe removes a writer previously returned by Subscribe.
func (m *multiWriter) Unsubscribe(id uuid.UUID) {
	m.Lock()
	defer m.Unlock()

	delete(m.writers, id)
}

// Write sends p to every subscribed writer. It never returns an error;
// a failing subscriber is simply skipped.
func (m *multiWriter) Write(p []byte) (n int, err error) {
	m.Lock()
	defer m.Unlock()

	for _, w := range m.writers {
		w.Write(p)
	}
	return len(p), nil
}
