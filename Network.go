/*
File Name:  Network.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner
*/

package node

import (
	"net"
	"time"
)

// recvBufferSize is the single-datagram receive buffer size. Per spec.md
// §4.5/§5, datagrams larger than this are truncated by the kernel and will
// fail codec validation (truncated, since the header's payload length
// exceeds what was read) rather than being accepted partially.
const recvBufferSize = 2048

// nodeSocket wraps the single UDP socket the Node owns. There is exactly
// one per Node; it is never writable-polled, and every send is a
// synchronous sendto issued from within a dispatcher handler.
type nodeSocket struct {
	conn *net.UDPConn
}

// newNodeSocket binds a UDP socket to the given "IP:Port" listen address.
func newNodeSocket(listen string) (s *nodeSocket, err error) {
	addr, err := net.ResolveUDPAddr("udp4", listen)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}

	return &nodeSocket{conn: conn}, nil
}

func (s *nodeSocket) sendTo(ip net.IP, port uint16, raw []byte) error {
	_, err := s.conn.WriteTo(raw, &net.UDPAddr{IP: ip, Port: int(port)})
	return err
}

func (s *nodeSocket) Close() error {
	return s.conn.Close()
}

// receiveLoop reads one datagram at a time and hands it to the dispatcher.
// There is no background flow beyond this loop: every state change is
// reactive to an inbound datagram, per spec.md §2/§5.
func (n *Node) receiveLoop() {
	buffer := make([]byte, recvBufferSize)

	for n.IsOpen() {
		length, sender, err := n.socket.conn.ReadFromUDP(buffer)
		if err != nil {
			if !n.IsOpen() {
				return
			}
			// Transport errors transition the node to closed, per spec.md §7.
			n.Filters.LogError("receiveLoop", "reading UDP datagram: %v\n", err)
			n.setState(StateClosed)
			return
		}

		n.handleDatagram(sender.IP, uint16(sender.Port), buffer[:length])
	}
}

// send writes raw to the given address and records the send time for
// diagnostics.
func (n *Node) send(ip net.IP, port uint16, raw []byte) error {
	err := n.socket.sendTo(ip, port, raw)
	n.markSent()
	return err
}

// nowUTC is the clock used for first_seen/last_seen; monotonic for
// last_sent lives in Node.markSent via time.Now directly.
func nowUTC() time.Time {
	return time.Now().UTC()
}
