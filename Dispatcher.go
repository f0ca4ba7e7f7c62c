/*
File Name:  Dispatcher.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner

Maps a decoded command + payload to its handler (spec.md §4.4). Handler
behavior follows the table in §4.4 exactly, including the two bugs §9
calls out as fixed here: find-value indexes the cache by the decoded
key (not an undefined local), and pong refreshes the sender's last_seen
via the routing table's candidate-promotion policy.
*/

package node

import (
	"net"

	"github.com/kadcore/node/dht"
)

// Command names, exactly as they appear on the wire (NUL-padded to 12
// bytes by the codec). Unknown commands are logged and dropped.
const (
	cmdPing      = "ping"
	cmdPong      = "pong"
	cmdStore     = "store"
	cmdFindNodes = "find-nodes"
	cmdFindValue = "find-value"
	cmdNodes     = "nodes"
	cmdErr       = "err"
	cmdOk        = "ok"
	cmdData      = "data"
)

// handleDatagram decodes raw as an envelope and dispatches it. Frame
// errors and schema errors are logged and the datagram is dropped; they
// never propagate past this function.
func (n *Node) handleDatagram(senderIP net.IP, senderPort uint16, raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		n.Filters.LogError("handleDatagram", "decoding envelope from %s: %v\n", senderIP, err)
		return
	}

	switch env.Command {
	case cmdPing:
		n.handlePing(senderIP, senderPort, env.Payload)
	case cmdPong:
		n.handlePong(senderIP, senderPort, env.Payload)
	case cmdStore:
		n.handleStore(senderIP, senderPort, env.Payload)
	case cmdFindNodes:
		n.handleFindNodes(senderIP, senderPort, env.Payload)
	case cmdFindValue:
		n.handleFindValue(senderIP, senderPort, env.Payload)
	case cmdNodes:
		n.handleNodes(senderIP, senderPort, env.Payload)
	default:
		// err, ok, and data are reply-only; receiving one inbound, or any
		// name not in the table, is an unknown command. Log and drop.
		n.Filters.LogError("handleDatagram", "unknown command '%s' from %s\n", env.Command, senderIP)
	}
}

func (n *Node) handlePing(ip net.IP, port uint16, payload []byte) {
	misc, err := DecodeMisc(payload)
	if err != nil {
		n.Filters.LogError("handlePing", "decoding Misc from %s: %v\n", ip, err)
		return
	}
	n.Filters.IncomingRequest(nil, cmdPing, misc.RequestId)

	n.replyPong(ip, port, misc.RequestId)
}

func (n *Node) handlePong(ip net.IP, port uint16, payload []byte) {
	pong, err := DecodePong(payload)
	if err != nil {
		n.Filters.LogError("handlePong", "decoding Pong from %s: %v\n", ip, err)
		return
	}
	n.Filters.IncomingRequest(nil, cmdPong, pong.RequestId)

	// Candidate promotion policy (spec.md §9): refresh last_seen for the
	// peer that just proved liveness, promoting it out of candidates if
	// its bucket has a vacancy.
	n.Routing.MarkSeen(dht.NodeId(pong.NodeId), nowUTC)
}

func (n *Node) handleStore(ip net.IP, port uint16, payload []byte) {
	kv, err := DecodeKeyValue(payload)
	if err != nil {
		n.Filters.LogError("handleStore", "decoding KeyValue from %s: %v\n", ip, err)
		return
	}
	n.Filters.IncomingRequest(nil, cmdStore, kv.RequestId)

	if !dht.ValidKeyLength(len(kv.Key)) || len(kv.Value) > dht.MaxValueLength {
		n.Filters.StoreResult(nil, kv.Key, false)
		n.replyErr(ip, port, kv.RequestId)
		return
	}

	n.Cache.Put(kv.Key, kv.Value)
	n.Filters.StoreResult(nil, kv.Key, true)
	n.replyOk(ip, port, kv.RequestId)
}

func (n *Node) handleFindNodes(ip net.IP, port uint16, payload []byte) {
	key, err := DecodeKey(payload)
	if err != nil {
		n.Filters.LogError("handleFindNodes", "decoding Key from %s: %v\n", ip, err)
		return
	}
	n.Filters.IncomingRequest(nil, cmdFindNodes, key.RequestId)
	n.replyFindNodes(ip, port, key)
}

func (n *Node) handleFindValue(ip net.IP, port uint16, payload []byte) {
	key, err := DecodeKey(payload)
	if err != nil {
		n.Filters.LogError("handleFindValue", "decoding Key from %s: %v\n", ip, err)
		return
	}
	n.Filters.IncomingRequest(nil, cmdFindValue, key.RequestId)

	// The fix for spec.md §9's op_find_value bug: index the cache by the
	// decoded key, not an undefined local.
	if value, found := n.Cache.Get(key.Key); found {
		n.replyData(ip, port, key.RequestId, key.Key, value)
		return
	}

	// Cache miss: delegate to the find-nodes handler, same reply shape.
	n.replyFindNodes(ip, port, key)
}

func (n *Node) handleNodes(ip net.IP, port uint16, payload []byte) {
	nodesMsg, err := DecodeNodes(payload)
	if err != nil {
		n.Filters.LogError("handleNodes", "decoding Nodes from %s: %v\n", ip, err)
		return
	}
	n.Filters.IncomingRequest(nil, cmdNodes, nodesMsg.RequestId)

	for _, rec := range nodesMsg.Peers {
		if n.Blacklist.Contains(rec.NodeId) {
			continue
		}

		peer := &dht.Peer{
			NodeId:    dht.NodeId(rec.NodeId),
			IP:        rec.IP,
			Port:      rec.Port,
			Flags:     rec.Flags,
			FirstSeen: nowUTC(),
		}
		if added, err := n.Routing.AddNode(peer); err == nil && added {
			n.Filters.NewPeer(peer)
		}
	}
}

// --- Reply construction. All replies echo request_id verbatim (spec.md
// §4.4) and are sent to the sender's address. ---

func (n *Node) replyPong(ip net.IP, port uint16, requestId uint64) {
	payload := EncodePong(Pong{RequestId: requestId, NodeId: n.NodeId})
	n.sendCommand(ip, port, cmdPong, payload, requestId)
}

func (n *Node) replyOk(ip net.IP, port uint16, requestId uint64) {
	payload := EncodeMisc(Misc{RequestId: requestId})
	n.sendCommand(ip, port, cmdOk, payload, requestId)
}

func (n *Node) replyErr(ip net.IP, port uint16, requestId uint64) {
	payload := EncodeMisc(Misc{RequestId: requestId})
	n.sendCommand(ip, port, cmdErr, payload, requestId)
}

func (n *Node) replyData(ip net.IP, port uint16, requestId uint64, key, value []byte) {
	payload := EncodeKeyValue(KeyValue{RequestId: requestId, Key: key, Value: value})
	n.sendCommand(ip, port, cmdData, payload, requestId)
}

func (n *Node) replyFindNodes(ip net.IP, port uint16, key Key) {
	if !dht.ValidKeyLength(len(key.Key)) {
		n.replyErr(ip, port, key.RequestId)
		return
	}

	peers := n.Routing.FindNodes(dht.NodeId(padKey(key.Key)))

	recs := make([]PeerRec, 0, len(peers))
	for _, p := range peers {
		recs = append(recs, PeerRec{NodeId: p.NodeId, IP: p.IP, Port: p.Port, Flags: p.Flags})
	}

	payload := EncodeNodes(Nodes{RequestId: key.RequestId, Peers: recs})
	n.sendCommand(ip, port, cmdNodes, payload, key.RequestId)
}

// sendPing sends a ping with the given request id. Used for bootstrap.
func (n *Node) sendPing(ip net.IP, port uint16, requestId uint64) {
	payload := EncodeMisc(Misc{RequestId: requestId})
	n.sendCommand(ip, port, cmdPing, payload, requestId)
}

func (n *Node) sendCommand(ip net.IP, port uint16, command string, payload []byte, requestId uint64) {
	raw, err := EncodeEnvelope(command, payload)
	if err != nil {
		// Programmer error: a command literal longer than 12 bytes. This
		// can only happen from a coding mistake in this file, never from
		// untrusted input, so it is an assertion per spec.md §7.
		panic(err)
	}

	if err := n.send(ip, port, raw); err != nil {
		n.Filters.LogError("sendCommand", "sending '%s' to %s: %v\n", command, ip, err)
		n.setState(StateClosed)
		return
	}

	n.Filters.ReplySent(nil, command, requestId)
}

// padKey fits key to IDBytes (32) so it can be treated as a NodeId for XOR
// distance: shorter keys (20 bytes) are right-padded with zero bytes,
// longer keys (64 bytes) are truncated to their first 32 bytes. Identifier
// width is fixed at 256 bits throughout the routing table (spec.md §3); a
// cache key is not required to be the same width, so this is the chosen
// projection for distance comparisons rather than a change to key
// semantics elsewhere (cache lookups always use the untruncated key).
func padKey(key []byte) []byte {
	if len(key) == dht.IDBytes {
		return key
	}
	out := make([]byte, dht.IDBytes)
	copy(out, key)
	return out
}
