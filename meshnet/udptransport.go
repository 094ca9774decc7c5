/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package meshnet

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/openthread-go/meshlink/meshtlv"
)

// UDPRadio is a RadioPort that carries MLE datagrams over a real UDP/IPv6
// socket instead of 802.15.4 hardware - the "mock radio" this module's
// tests and cmd/meshd run against in place of a real chip, the same role
// the teacher's enableDSCP (sptp/client/dscp.go) plays for its own
// UDP socket options. It implements the MLE wire-level half of RadioPort
// (unicast/multicast send, receive, hop-limit enforcement); the
// 802.15.4-specific half (channel, CSL hardware timing) is satisfied with
// fixed, inert values since there is no radio underneath to report them.
//
// Peer ExtAddr<->UDP address resolution is a flat directory populated by
// AddPeer; a real deployment's RadioPort instead resolves addresses from
// the 6LoWPAN/802.15.4 MAC layer, which this harness doesn't have.
type UDPRadio struct {
	conn *net.UDPConn
	own  meshtlv.ExtAddr

	mu        sync.Mutex
	peers     map[meshtlv.ExtAddr]*net.UDPAddr
	byAddr    map[string]meshtlv.ExtAddr
	shortAddr meshtlv.Rloc16
	channel   uint8

	mcast map[MulticastScope]*net.UDPAddr
}

// NewUDPRadio wraps conn, already bound to MLE's UDP port, as a RadioPort
// for own. mcastAddrs supplies the three multicast destinations from
// spec.md §6; this harness can't derive ff32:.../ff33:... itself since
// those embed the mesh-local prefix, which lives in the network dataset,
// not here.
func NewUDPRadio(conn *net.UDPConn, own meshtlv.ExtAddr, mcastAddrs map[MulticastScope]*net.UDPAddr) *UDPRadio {
	return &UDPRadio{
		conn:      conn,
		own:       own,
		peers:     make(map[meshtlv.ExtAddr]*net.UDPAddr),
		byAddr:    make(map[string]meshtlv.ExtAddr),
		mcast:     mcastAddrs,
		shortAddr: meshtlv.InvalidRloc16,
	}
}

// AddPeer registers addr as the UDP endpoint for a neighbor's extended
// address, learned out-of-band (static config, or a prior Discovery
// exchange's source address).
func (r *UDPRadio) AddPeer(ext meshtlv.ExtAddr, addr *net.UDPAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[ext] = addr
	r.byAddr[addr.String()] = ext
}

// ConfigureSocket sets the IPv6 hop-limit sockopts MLE's UDP socket
// convention requires (HopLimit, spec.md §6) on both unicast and
// multicast paths, and asks the kernel to hand back the hop limit of
// every received datagram as ancillary data so Receive can enforce it.
// Grounded on enableDSCP's direct unix.SetsockoptInt use.
func (r *UDPRadio) ConfigureSocket() error {
	sc, err := r.conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("meshnet: syscall conn: %w", err)
	}
	var sockErr error
	err = sc.Control(func(fd uintptr) {
		if sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS, HopLimitValue); sockErr != nil {
			return
		}
		if sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_HOPS, HopLimitValue); sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_RECVHOPLIMIT, 1)
	})
	if err != nil {
		return fmt.Errorf("meshnet: control: %w", err)
	}
	return sockErr
}

// HopLimitValue is the hop-limit-255 convention spec.md §6 requires of
// every MLE datagram.
const HopLimitValue = 255

// JoinMulticastGroups subscribes the socket to every scope address in
// mcast on the given interface, via IPV6_JOIN_GROUP - the same
// unix.SetsockoptIPMreq-family call enableDSCP's neighboring dscp_test.go
// exercises for socket option plumbing, applied here to group membership
// instead of traffic class.
func (r *UDPRadio) JoinMulticastGroups(ifi *net.Interface) error {
	sc, err := r.conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("meshnet: syscall conn: %w", err)
	}
	var sockErr error
	err = sc.Control(func(fd uintptr) {
		for scope, addr := range r.mcast {
			ip16 := addr.IP.To16()
			if ip16 == nil {
				sockErr = fmt.Errorf("multicast scope %d: not an IPv6 address: %s", scope, addr.IP)
				return
			}
			mreq := &unix.IPv6Mreq{Interface: uint32(ifi.Index)}
			copy(mreq.Multiaddr[:], ip16)
			if sockErr = unix.SetsockoptIPv6Mreq(int(fd), unix.IPPROTO_IPV6, unix.IPV6_JOIN_GROUP, mreq); sockErr != nil {
				return
			}
		}
	})
	if err != nil {
		return fmt.Errorf("meshnet: control: %w", err)
	}
	return sockErr
}

// SendUnicast implements RadioPort.
func (r *UDPRadio) SendUnicast(ctx context.Context, dst meshtlv.ExtAddr, payload []byte) error {
	r.mu.Lock()
	addr, ok := r.peers[dst]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("meshnet: no known UDP address for %s", dst)
	}
	_, err := r.conn.WriteToUDP(payload, addr)
	return err
}

// SendMulticast implements RadioPort.
func (r *UDPRadio) SendMulticast(_ context.Context, scope MulticastScope, payload []byte) error {
	addr, ok := r.mcast[scope]
	if !ok {
		return fmt.Errorf("meshnet: no configured address for multicast scope %d", scope)
	}
	_, err := r.conn.WriteToUDP(payload, addr)
	return err
}

// SendIndirect implements RadioPort. This harness has no sleepy-child poll
// or CSL wake window beneath it, so it sends immediately and reports the
// outcome on the returned channel without delay.
func (r *UDPRadio) SendIndirect(ctx context.Context, dst meshtlv.ExtAddr, payload []byte) (<-chan error, error) {
	ch := make(chan error, 1)
	ch <- r.SendUnicast(ctx, dst, payload)
	close(ch)
	return ch, nil
}

// Receive implements RadioPort: it blocks on the UDP socket, rejects
// datagrams from unregistered peers, and hands the rest back with the
// directory-resolved sender ExtAddr.
func (r *UDPRadio) Receive(ctx context.Context) (Frame, error) {
	buf := make([]byte, 2048)
	oob := make([]byte, 128)
	for {
		n, oobn, _, addr, err := r.conn.ReadMsgUDP(buf, oob)
		if err != nil {
			return Frame{}, err
		}
		r.mu.Lock()
		srcExt, known := r.byAddr[addr.String()]
		r.mu.Unlock()
		if !known {
			continue
		}
		if hopLimit, ok := parseHopLimit(oob[:oobn]); ok && hopLimit != HopLimitValue {
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		return Frame{SrcExt: srcExt, Payload: payload}, nil
	}
}

// parseHopLimit extracts the IPV6_HOPLIMIT ancillary data value a
// ConfigureSocket'd socket attaches to every received datagram.
func parseHopLimit(oob []byte) (int, bool) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return 0, false
	}
	for _, m := range msgs {
		if m.Header.Level == unix.IPPROTO_IPV6 && m.Header.Type == unix.IPV6_HOPLIMIT && len(m.Data) >= 4 {
			return int(nativeEndianUint32(m.Data)), true
		}
	}
	return 0, false
}

func nativeEndianUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// ExtAddress implements RadioPort.
func (r *UDPRadio) ExtAddress() meshtlv.ExtAddr { return r.own }

// SetShortAddress implements RadioPort.
func (r *UDPRadio) SetShortAddress(addr meshtlv.Rloc16) error {
	r.mu.Lock()
	r.shortAddr = addr
	r.mu.Unlock()
	return nil
}

// Channel implements RadioPort. There is no radio channel underneath a
// UDP transport; it reports a fixed value.
func (r *UDPRadio) Channel() uint8 { return r.channel }

// SetChannel implements RadioPort.
func (r *UDPRadio) SetChannel(channel uint8) error {
	r.mu.Lock()
	r.channel = channel
	r.mu.Unlock()
	return nil
}

// Now implements RadioPort.
func (r *UDPRadio) Now() time.Time { return time.Now() }

// SendAt implements RadioPort. Without real radio scheduling hardware
// this harness can't land a frame at a specific microsecond; it sends
// immediately, which is only correct for testing the non-CSL paths.
func (r *UDPRadio) SendAt(ctx context.Context, dst meshtlv.ExtAddr, payload []byte, _ uint64) (<-chan error, error) {
	return r.SendIndirect(ctx, dst, payload)
}

// ReceiveAt implements RadioPort. No real timed receive window exists
// over a plain UDP socket; it degrades to a single blocking Receive call
// filtered to channel, which this harness never changes per-peer.
func (r *UDPRadio) ReceiveAt(ctx context.Context, _ uint8, _ uint64, _ uint32) (Frame, error) {
	return r.Receive(ctx)
}

// Sleep implements RadioPort as a no-op; there is no low-power state for
// a UDP socket to enter.
func (r *UDPRadio) Sleep() error { return nil }

// EnableCsl implements RadioPort as a no-op.
func (r *UDPRadio) EnableCsl(period uint16) error { return nil }

// UpdateCslSampleTime implements RadioPort as a no-op.
func (r *UDPRadio) UpdateCslSampleTime(sampleUs uint64) error { return nil }

// AddCslShortEntry implements RadioPort as a no-op.
func (r *UDPRadio) AddCslShortEntry(short meshtlv.Rloc16) error { return nil }

// ClearCslShortEntry implements RadioPort as a no-op.
func (r *UDPRadio) ClearCslShortEntry(short meshtlv.Rloc16) error { return nil }

// AddCslExtEntry implements RadioPort as a no-op.
func (r *UDPRadio) AddCslExtEntry(ext meshtlv.ExtAddr) error { return nil }

// ClearCslExtEntry implements RadioPort as a no-op.
func (r *UDPRadio) ClearCslExtEntry(ext meshtlv.ExtAddr) error { return nil }

// NowUs implements RadioPort.
func (r *UDPRadio) NowUs() uint64 { return uint64(time.Now().UnixMicro()) }

// BusSpeedHz implements RadioPort with a nominal value; there is no SPI
// bus to a radio chip underneath this transport.
func (r *UDPRadio) BusSpeedHz() uint32 { return 0 }

// BusLatencyUs implements RadioPort.
func (r *UDPRadio) BusLatencyUs() uint32 { return 0 }

// CslAccuracyPPM implements RadioPort with a conservative stand-in value.
func (r *UDPRadio) CslAccuracyPPM() uint8 { return 255 }

// CslUncertaintyUs implements RadioPort.
func (r *UDPRadio) CslUncertaintyUs() uint32 { return 0 }
