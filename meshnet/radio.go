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
	"time"

	"github.com/openthread-go/meshlink/meshtlv"
)

// Frame is a single 802.15.4 frame handed to or received from the radio,
// carrying only the fields the MLE layer needs: the peer's extended and
// short addresses, and the payload bytes (an MLE message, already
// decrypted if RadioPort applies MAC-layer security itself).
type Frame struct {
	SrcExt   meshtlv.ExtAddr
	SrcShort meshtlv.Rloc16
	DstExt   meshtlv.ExtAddr
	DstShort meshtlv.Rloc16
	Payload  []byte
	// LinkMargin is the receive signal margin the radio measured for this
	// frame, used to rank candidate parents (spec.md §4.8.4).
	LinkMargin meshtlv.LinkMargin
}

// MulticastScope identifies one of the fixed IPv6 multicast groups MLE
// sends to (spec.md §6); RadioPort implementations resolve these to the
// corresponding 802.15.4 broadcast/group addressing.
type MulticastScope uint8

// Multicast scopes.
const (
	// ScopeLinkLocalAllThreadNodes is ff32:40:<mesh-local-prefix>:1.
	ScopeLinkLocalAllThreadNodes MulticastScope = iota
	// ScopeRealmLocalAllThreadNodes is ff33:40:<mesh-local-prefix>:1.
	ScopeRealmLocalAllThreadNodes
	// ScopeLinkLocalAllRouters is ff02::2.
	ScopeLinkLocalAllRouters
)

// RadioPort is the capability the MLE core needs from the underlying
// 802.15.4 radio: sending a unicast frame to a short or extended address,
// and receiving frames as they arrive. Implementations own channel
// selection, CSMA/CA, and MAC-layer ack handling; this module only ever
// asks for "send this frame to this neighbor".
type RadioPort interface {
	// SendUnicast transmits payload to dst over the radio. It blocks until
	// the frame has been handed to the MAC layer (not until acked); callers
	// that need delivery confirmation use SendIndirect instead.
	SendUnicast(ctx context.Context, dst meshtlv.ExtAddr, payload []byte) error

	// SendMulticast transmits payload to one of MLE's fixed multicast
	// scopes (link-local all-Thread-nodes, realm-local all-Thread-nodes,
	// link-local all-routers; spec.md §6) rather than a single
	// extended-address neighbor. Used for Advertisement, ParentRequest,
	// multicast Data Response, and Announce.
	SendMulticast(ctx context.Context, scope MulticastScope, payload []byte) error

	// SendIndirect queues payload for a sleepy child that is not
	// necessarily listening right now; the radio driver is responsible for
	// holding it until the child polls or its CSL window opens, and
	// reports success/failure via the returned channel once the attempt
	// (poll-triggered or CSL-scheduled) completes.
	SendIndirect(ctx context.Context, dst meshtlv.ExtAddr, payload []byte) (<-chan error, error)

	// Receive blocks until a frame addressed to this device arrives or ctx
	// is done.
	Receive(ctx context.Context) (Frame, error)

	// ExtAddress returns this device's own extended address.
	ExtAddress() meshtlv.ExtAddr

	// SetShortAddress installs the RLOC16 this device should now answer
	// to at the MAC layer (or clears it, passing meshtlv.InvalidRloc16).
	SetShortAddress(addr meshtlv.Rloc16) error

	// Channel returns the radio channel currently in use.
	Channel() uint8

	// SetChannel switches the radio to a new channel, used during Thread
	// Announce-driven channel changes.
	SetChannel(channel uint8) error

	// Now returns the radio's view of wall-clock time, abstracted so CSL
	// scheduling tests can inject a fake clock the way the teacher's
	// sptp client injects a fake Clock.
	Now() time.Time

	// SendAt transmits payload to dst at the radio's microsecond clock
	// reading startUs, used by the CSL Tx Scheduler to land a frame inside
	// a sleepy peer's wake window rather than immediately.
	SendAt(ctx context.Context, dst meshtlv.ExtAddr, payload []byte, startUs uint64) (<-chan error, error)

	// ReceiveAt arms a timed receive window of durationUs starting at
	// startUs on channel, used by the CSL Receiver and, for the sub-child
	// variant, the wakeup listening cycle.
	ReceiveAt(ctx context.Context, channel uint8, startUs uint64, durationUs uint32) (Frame, error)

	// Sleep puts the radio into its low-power state between scheduled
	// windows.
	Sleep() error

	// EnableCsl turns on Coordinated Sampled Listening with the given
	// period (units of 10 symbols), or disables it when period is zero.
	EnableCsl(period uint16) error

	// UpdateCslSampleTime informs the radio driver of this device's own
	// CSL phase anchor, in microseconds, so outgoing CSL IEs carry a
	// consistent phase.
	UpdateCslSampleTime(sampleUs uint64) error

	// AddCslShortEntry and ClearCslShortEntry maintain the radio's
	// short-address CSL neighbor table, rewritten by the CSL Receiver on
	// every parent/candidate/child-set change.
	AddCslShortEntry(short meshtlv.Rloc16) error
	ClearCslShortEntry(short meshtlv.Rloc16) error

	// AddCslExtEntry and ClearCslExtEntry are the extended-address
	// counterparts of AddCslShortEntry/ClearCslShortEntry.
	AddCslExtEntry(ext meshtlv.ExtAddr) error
	ClearCslExtEntry(ext meshtlv.ExtAddr) error

	// NowUs returns the radio's monotonic microsecond clock, used only
	// for CSL window math (spec.md §9's distinction between the
	// millisecond tick and the microsecond CSL clock).
	NowUs() uint64

	// BusSpeedHz and BusLatencyUs report the host-to-radio bus
	// characteristics the CSL scheduler folds into its guard margin.
	BusSpeedHz() uint32
	BusLatencyUs() uint32

	// CslAccuracyPPM and CslUncertaintyUs report this device's own clock
	// accuracy and scheduling uncertainty, advertised to peers in the CSL
	// Clock Accuracy TLV and used locally to size receive windows.
	CslAccuracyPPM() uint8
	CslUncertaintyUs() uint32
}
