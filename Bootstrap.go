/*
File Name:  Bootstrap.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner

Parses the configured seed list into routing-table peer records. The
application supplies the initial peer set via Routing.AddNode (here, from
Config.SeedList) before calling Node.Bootstrap, which pings each one. This
iterates the seed list directly rather than a by_addr-style mapping, so
the bug noted in spec.md §9 (iterating a map as if it were a sequence)
does not apply to seed loading; Node.Bootstrap itself iterates
Routing.AllPeers(), the routing table's own by_addr mapping's values, so
candidates overflowing a full bucket are pinged too, not just active
peers.
*/

package node

import (
	"encoding/hex"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/kadcore/node/dht"
)

// parseSeed converts a single configured seed entry into a routing-table
// peer record ready for AddNode.
func parseSeed(seed PeerSeed) (peer *dht.Peer, err error) {
	nodeId, err := hex.DecodeString(seed.NodeId)
	if err != nil {
		return nil, err
	}
	if len(nodeId) != dht.IDBytes {
		return nil, errors.New("dht: seed node id wrong length")
	}

	addr, err := parseAddress(seed.Address)
	if err != nil {
		return nil, err
	}

	ip := addr.IP.To4()
	if ip == nil {
		ip = addr.IP.To16()
	}

	now := time.Now().UTC()
	return &dht.Peer{
		NodeId:    dht.NodeId(nodeId),
		IP:        ip,
		Port:      uint16(addr.Port),
		FirstSeen: now,
	}, nil
}

// parseAddress parses an input peer address in the form "IP:Port".
func parseAddress(address string) (remote *net.UDPAddr, err error) {
	host, portA, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}

	portI, err := strconv.Atoi(portA)
	if err != nil {
		return nil, err
	} else if portI <= 0 || portI > 65535 {
		return nil, errors.New("invalid port number")
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil, errors.New("invalid IP address")
	}

	return &net.UDPAddr{IP: ip, Port: portI}, nil
}
