/*
File Name:  Node.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner
*/

package node

import (
	"fmt"
	"sync"
	"time"

	"github.com/kadcore/node/dht"
	"github.com/kadcore/node/store"
)

// State is the node's lifecycle. Modeled as a small tagged variant rather
// than a string or bare bool, per the design note on state representation.
type State int

const (
	StateOpen State = iota
	StateClosed
)

// Node owns the socket, the routing table, and the value cache. It is the
// only component that may mutate either of the latter two concurrently;
// everything else is single-threaded ingress processing (section 5).
type Node struct {
	Config  *Config
	Filters Filters

	NodeId dht.NodeId

	Routing *dht.RoutingTable
	Cache   *dht.ValueCache

	Blacklist *Blacklist

	logger *Logger
	Stdout *multiWriter

	socket *nodeSocket

	state      State
	stateMutex sync.RWMutex

	lastSent time.Time
	mutex    sync.Mutex // guards lastSent
}

// Init constructs a Node from the given configuration file. If the file
// does not exist or is empty, the embedded default configuration is used.
// The returned status is one of the StatusX constants; anything other than
// StatusSuccess indicates the caller must not proceed.
func Init(configFilename string, seed []byte, filters *Filters) (n *Node, status int, err error) {
	n = &Node{Stdout: newMultiWriter()}

	if filters != nil {
		n.Filters = *filters
	}
	n.initFilters()

	n.Config = &Config{}
	if status, err = LoadConfig(configFilename, n.Config); status != StatusSuccess {
		return nil, status, err
	}

	if n.logger, err = newLogger(n.Config.LogFile, n.Stdout); err != nil {
		return nil, StatusLogInit, err
	}
	if filters == nil || filters.LogError == nil {
		n.Filters.LogError = func(function, format string, v ...interface{}) {
			n.logger.Write(function + ": " + fmt.Sprintf(format, v...))
		}
	}

	// The remaining four hooks default to writing into the same log sink
	// (and therefore the Stdout multiWriter the status API's event feed
	// subscribes to), so /status/events carries dispatcher activity out of
	// the box even when the caller supplies no Filters of its own.
	if filters == nil || filters.NewPeer == nil {
		n.Filters.NewPeer = func(peer *dht.Peer) {
			n.logger.Write(fmt.Sprintf("new_peer: %x @ %s:%d", peer.NodeId, peer.IP, peer.Port))
		}
	}
	if filters == nil || filters.IncomingRequest == nil {
		n.Filters.IncomingRequest = func(peer *dht.Peer, command string, requestId uint64) {
			n.logger.Write(fmt.Sprintf("incoming_request: command=%s request_id=%d", command, requestId))
		}
	}
	if filters == nil || filters.ReplySent == nil {
		n.Filters.ReplySent = func(peer *dht.Peer, command string, requestId uint64) {
			n.logger.Write(fmt.Sprintf("reply_sent: command=%s request_id=%d", command, requestId))
		}
	}
	if filters == nil || filters.StoreResult == nil {
		n.Filters.StoreResult = func(peer *dht.Peer, key []byte, ok bool) {
			n.logger.Write(fmt.Sprintf("store_result: key=%x ok=%v", key, ok))
		}
	}

	if seed != nil {
		n.NodeId = dht.DeriveNodeId(seed)
	} else if id, err := dht.RandomNodeId(); err == nil {
		n.NodeId = id
	} else {
		return nil, StatusUnknownError, err
	}

	n.Routing = dht.NewRoutingTable(n.NodeId)

	capacity := n.Config.CacheCapacity
	if capacity <= 0 {
		capacity = dht.DefaultCacheCapacity
	}
	n.Cache = dht.NewValueCache(capacity)

	if n.Config.CachePath != "" {
		backend, err := store.NewPogreb(n.Config.CachePath)
		if err != nil {
			return nil, StatusCacheBackend, err
		}
		n.Cache = n.Cache.WithBackend(backend)
	}

	n.Blacklist = NewBlacklist(store.NewMemory())
	n.state = StateOpen

	n.loadSeedList()

	return n, StatusSuccess, nil
}

// loadSeedList adds every peer from Config.SeedList to the routing table.
// Malformed entries are logged and skipped; the application may still call
// Bootstrap afterwards to ping whatever peers were accepted.
func (n *Node) loadSeedList() {
	for _, seed := range n.Config.SeedList {
		peer, err := parseSeed(seed)
		if err != nil {
			n.Filters.LogError("loadSeedList", "seed '%s' at '%s': %v\n", seed.NodeId, seed.Address, err)
			continue
		}
		if peer.NodeId.Equal(n.NodeId) {
			continue
		}
		if added, err := n.Routing.AddNode(peer); err != nil {
			n.Filters.LogError("loadSeedList", "add_node for seed '%s': %v\n", seed.Address, err)
		} else if added {
			n.Filters.NewPeer(peer)
		}
	}
}

// Listen binds the UDP socket and starts the receive loop. It blocks until
// the node is closed or a fatal transport error occurs.
func (n *Node) Listen() (err error) {
	socket, err := newNodeSocket(n.Config.Listen)
	if err != nil {
		n.setState(StateClosed)
		return err
	}
	n.socket = socket

	n.receiveLoop()
	return nil
}

// Connect binds the socket, starts the receive loop in its own goroutine,
// and bootstraps against the configured seed list. Mirrors the teacher's
// Init-then-Connect split (Peernet.go), where Init only prepares state and
// Connect starts the actual network activity.
func (n *Node) Connect() (err error) {
	socket, err := newNodeSocket(n.Config.Listen)
	if err != nil {
		n.setState(StateClosed)
		return err
	}
	n.socket = socket

	go n.receiveLoop()
	n.Bootstrap()

	return nil
}

// Bootstrap sends a ping with request_id = 1 to every known peer, active or
// candidate, excluding self. It iterates Routing.AllPeers (the routing
// table's by_addr mapping's values) rather than Routing.Nodes, so that
// candidates overflowing a full bucket (e.g. from a seed list larger than
// K per bucket) still get pinged. The caller must have already added the
// initial peer set via Routing.AddNode (typically from Config.SeedList)
// before calling this.
func (n *Node) Bootstrap() {
	for _, peer := range n.Routing.AllPeers() {
		if peer.NodeId.Equal(n.NodeId) {
			continue
		}
		n.sendPing(peer.IP, peer.Port, 1)
	}
}

// IsOpen reports whether the node is still accepting datagrams.
func (n *Node) IsOpen() bool {
	n.stateMutex.RLock()
	defer n.stateMutex.RUnlock()
	return n.state == StateOpen
}

func (n *Node) setState(s State) {
	n.stateMutex.Lock()
	defer n.stateMutex.Unlock()
	n.state = s
}

// Close transitions the node to closed and releases the socket. Closed is
// terminal; further reads are refused.
func (n *Node) Close() error {
	n.setState(StateClosed)
	if n.socket != nil {
		return n.socket.Close()
	}
	return nil
}

func (n *Node) markSent() {
	n.mutex.Lock()
	n.lastSent = time.Now()
	n.mutex.Unlock()
}

// LastSent returns the monotonic timestamp of the most recent sendto, for
// diagnostics.
func (n *Node) LastSent() time.Time {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.lastSent
}
