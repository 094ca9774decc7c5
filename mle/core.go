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

package mle

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openthread-go/meshlink/csl"
	"github.com/openthread-go/meshlink/delayed"
	"github.com/openthread-go/meshlink/indirect"
	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/mle/stats"
	"github.com/openthread-go/meshlink/neighbor"
	"github.com/openthread-go/meshlink/retx"
)

// DeviceRole is this device's current position in the Thread network,
// spec.md §3's top-level state the rest of the stack keys off of.
type DeviceRole uint8

// Device roles.
const (
	RoleDisabled DeviceRole = iota
	RoleDetached
	RoleChild
)

func (r DeviceRole) String() string {
	switch r {
	case RoleDisabled:
		return "disabled"
	case RoleDetached:
		return "detached"
	case RoleChild:
		return "child"
	default:
		return "unknown"
	}
}

// AttachState is Core's position within a single attach cycle (spec.md
// §4.8's seven-step cycle).
type AttachState uint8

// Attach states.
const (
	AttachIdle AttachState = iota
	AttachStart
	AttachParentRequest
	AttachChildIDRequest
)

func (s AttachState) String() string {
	switch s {
	case AttachIdle:
		return "idle"
	case AttachStart:
		return "start"
	case AttachParentRequest:
		return "parent_request"
	case AttachChildIDRequest:
		return "child_id_request"
	default:
		return "unknown"
	}
}

// ReattachState tracks which dataset an attach cycle retried after failing
// to attach on the active one (spec.md §4.8's reattach() fallback chain).
type ReattachState uint8

// Reattach states.
const (
	ReattachStop ReattachState = iota
	ReattachActive
	ReattachPending
)

func (s ReattachState) String() string {
	switch s {
	case ReattachStop:
		return "stop"
	case ReattachActive:
		return "active"
	case ReattachPending:
		return "pending"
	default:
		return "unknown"
	}
}

// ParentInfo is the public snapshot GetParentInfo returns: just enough to
// let a caller display or reason about the current upstream router
// without handing out the live *neighbor.Parent.
type ParentInfo struct {
	ExtAddr    meshtlv.ExtAddr
	Rloc16     meshtlv.Rloc16
	LinkMargin meshtlv.LinkMargin
}

// Core is the MLE Core State Machine (C8): the attach cycle, the
// incoming-datagram security policy, and graceful detach, wired against
// every collaborator built in the sibling packages.
type Core struct {
	cfg *Config

	role          DeviceRole
	mode          meshtlv.DeviceMode
	attachState   AttachState
	reattachState ReattachState

	table     *neighbor.Table
	tracker   *retx.Tracker
	delayed   *delayed.Sender
	scheduler *csl.Scheduler
	receiver  *csl.Receiver
	indirect  *indirect.Sender

	radio     meshnet.RadioPort
	netData   meshnet.NetworkDataStore
	settings  meshnet.SettingsStore
	notifier  *meshnet.Notifier
	forwarder meshnet.MeshForwarder
	keys      KeyStore

	// ownRloc16 is the RLOC16 this device's parent most recently assigned it
	// (the ChildIdResponse's Address16 TLV); InvalidRloc16 while detached.
	ownRloc16 meshtlv.Rloc16

	currentKeySeq meshtlv.KeySequence
	// ownFrameCounter is this device's own outgoing MLE frame counter,
	// advanced once per secured frame sent (distinct from the per-neighbor
	// received-frame counters the security policy tracks).
	ownFrameCounter uint32

	rng *rand.Rand

	// attachDeadline is the time the currently-outstanding step of the
	// attach cycle (the jittered Start delay, a ParentRequest collection
	// window, or the ChildIdResponse wait) expires.
	attachDeadline     time.Time
	attachCycle        int // counts full cycles, first-cycle vs next-cycle scan rules key off this
	attachRequestsSent int // ParentRequests sent so far in the current cycle
	sleepy             bool
	cslEnabled         bool

	// announceState drives the Announce-triggered channel discovery cycle
	// (spec.md §4.8's channel discovery note); see announce.go.
	announceState     announceState
	announceChannel   uint8
	announceTimestamp meshtlv.TimestampValue
	announceDeadline  time.Time

	// discoveryCallback/discoveryDeadline track an outstanding user-driven
	// Discovery scan (StartDiscovery); nil/zero when none is in progress.
	discoveryCallback DiscoveryCallback
	discoveryDeadline time.Time

	detachCallback func()
	detachDeadline time.Time

	// subChild is the optional Sub-Child Extension (C9) admitting further
	// MTDs under this device, if this device has any remaining RLOC16
	// address space to offer. nil on a device that never sub-parents.
	subChild SubChildHandler

	// stats is the optional counter sink (mle/stats.Stats); nil on a Core
	// built without SetStats, in which case every stats call below is a
	// no-op guarded by the nil check.
	stats stats.Stats
}

// SetStats installs (or, with nil, removes) the counter sink every TX/RX,
// drop, attach, and detach event below reports through. Wired in after
// NewCore the same way SetSubChildHandler is, since callers typically
// build the stats.Stats (e.g. stats.NewPromStats) independently of Core
// construction.
func (c *Core) SetStats(s stats.Stats) {
	c.stats = s
}

// SubChildHandler is the capability a sub-child parent (package subchild's
// ParentSide) offers Core: the three admitting-side steps of the attach
// handshake a candidate sub-child drives against this device, for the
// three command kinds Core itself never needs (it is never a parent on
// its own attach cycle, spec.md §4.8 — only a sub-child parent is).
type SubChildHandler interface {
	HandleParentRequest(ctx context.Context, now time.Time, srcExt meshtlv.ExtAddr, tlvs []meshtlv.TLV) error
	HandleLinkRequest(ctx context.Context, now time.Time, srcExt meshtlv.ExtAddr, tlvs []meshtlv.TLV) error
	HandleChildIDRequest(ctx context.Context, now time.Time, srcExt meshtlv.ExtAddr, tlvs []meshtlv.TLV) error
}

// SetSubChildHandler installs (or, with nil, removes) the Sub-Child
// Extension this device offers further MTDs. Wired in after NewSystem
// since subchild.New itself needs this Core's GetRloc16/CurrentKeySequence
// methods, which don't exist until construction completes.
func (c *Core) SetSubChildHandler(h SubChildHandler) {
	c.subChild = h
}

// NewCore wires a Core against its collaborators. table, tracker, delayed,
// scheduler, receiver, and indirectSender are constructed by the caller
// (main.go/tests) since their own constructors take configuration this
// package does not own (arena sizing, CSL hardware capability).
func NewCore(
	cfg *Config,
	table *neighbor.Table,
	tracker *retx.Tracker,
	sender *delayed.Sender,
	scheduler *csl.Scheduler,
	receiver *csl.Receiver,
	indirectSender *indirect.Sender,
	radio meshnet.RadioPort,
	netData meshnet.NetworkDataStore,
	settings meshnet.SettingsStore,
	notifier *meshnet.Notifier,
	forwarder meshnet.MeshForwarder,
	keys KeyStore,
) *Core {
	return &Core{
		cfg:       cfg,
		role:      RoleDisabled,
		table:     table,
		tracker:   tracker,
		delayed:   sender,
		scheduler: scheduler,
		receiver:  receiver,
		indirect:  indirectSender,
		radio:     radio,
		netData:   netData,
		settings:  settings,
		notifier:  notifier,
		forwarder: forwarder,
		keys:      keys,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetRole returns the device's current role.
func (c *Core) GetRole() DeviceRole { return c.role }

// GetRloc16 returns this device's own RLOC16, or InvalidRloc16 while not a
// Child.
func (c *Core) GetRloc16() meshtlv.Rloc16 {
	if c.role != RoleChild {
		return meshtlv.InvalidRloc16
	}
	return c.ownRloc16
}

// CurrentKeySequence returns the key sequence this device currently
// considers active, the same sequence sealAndSend uses for its own
// outgoing frames. The sub-child extension reuses it so a sub-child
// parent's own sealed frames stay on the same key schedule as the rest
// of its traffic.
func (c *Core) CurrentKeySequence() meshtlv.KeySequence { return c.currentKeySeq }

// GetParentInfo returns the current parent's snapshot and true, or the
// zero value and false if this device has no parent (not a Child).
func (c *Core) GetParentInfo() (ParentInfo, bool) {
	p := c.table.Parent()
	if p == nil {
		return ParentInfo{}, false
	}
	return ParentInfo{ExtAddr: p.ExtAddr, Rloc16: p.Rloc16, LinkMargin: meshtlv.LinkMargin(p.AvgRSS)}, true
}

// Enable transitions Disabled -> Detached, the precondition for Start.
// Calling it a second time without an intervening Disable is a no-op
// error (KindAlready), matching spec.md §7's idempotency rule.
func (c *Core) Enable() error {
	if c.role != RoleDisabled {
		return meshnet.NewError("mle.Enable", meshnet.KindAlready, nil)
	}
	c.role = RoleDetached
	c.notifier.Signal(meshnet.ChangedRole)
	return nil
}

// Disable tears the device all the way down: clears every timer and
// queued send, detaches from any parent, and returns to Disabled. Safe to
// call from any role (spec.md §5's disable() semantics).
func (c *Core) Disable() error {
	if c.role == RoleDisabled {
		return meshnet.NewError("mle.Disable", meshnet.KindAlready, nil)
	}
	c.delayed.Clear()
	c.disableCsl()
	c.table.ClearParentCandidate()
	c.table.ClearParent()
	c.ownRloc16 = meshtlv.InvalidRloc16
	c.attachState = AttachIdle
	c.reattachState = ReattachStop
	c.role = RoleDisabled
	c.notifier.Signal(meshnet.ChangedRole)
	return nil
}

// Start begins (or restarts) the attach cycle with the given device mode,
// requiring the device already be Enabled (Detached or Child).
func (c *Core) Start(mode meshtlv.DeviceMode) error {
	if c.role == RoleDisabled {
		return meshnet.NewError("mle.Start", meshnet.KindInvalidState, nil)
	}
	c.mode = mode
	c.sleepy = !mode.Has(meshtlv.ModeRxOnWhenIdle)
	if c.restoreState(time.Now()) {
		return nil
	}
	c.BecomeDetached()
	return nil
}

// Stop halts any in-progress attach cycle and returns to Detached without
// fully disabling the device, recording mode for the next Start.
func (c *Core) Stop(mode meshtlv.DeviceMode) error {
	if c.role == RoleDisabled {
		return meshnet.NewError("mle.Stop", meshnet.KindInvalidState, nil)
	}
	c.mode = mode
	c.attachState = AttachIdle
	c.reattachState = ReattachStop
	c.disableCsl()
	c.table.ClearParentCandidate()
	c.table.ClearParent()
	c.ownRloc16 = meshtlv.InvalidRloc16
	if c.role != RoleDetached {
		c.role = RoleDetached
		c.notifier.Signal(meshnet.ChangedRole | meshnet.ChangedParent)
	}
	return nil
}

// BecomeDetached drops any current parent, resets the attach cycle
// counter, and arms the jittered Start delay (spec.md §4.8 step 1).
func (c *Core) BecomeDetached() {
	c.disableCsl()
	c.table.ClearParent()
	c.table.ClearParentCandidate()
	c.ownRloc16 = meshtlv.InvalidRloc16
	if c.role == RoleChild {
		c.role = RoleDetached
		c.notifier.Signal(meshnet.ChangedRole | meshnet.ChangedParent)
	}
	c.attachCycle = 0
	c.armStartDelay(time.Now())
}

func (c *Core) armStartDelay(now time.Time) {
	jitter := time.Duration(c.rng.Int63n(int64(c.cfg.StartDelayMax) + 1))
	c.attachState = AttachStart
	c.attachDeadline = now.Add(jitter)
}

// BecomeChild promotes candidate into the table's parent slot and moves
// the device to role Child, completing the attach cycle (spec.md §4.8
// step 5).
func (c *Core) BecomeChild(candidate *neighbor.ParentCandidate) {
	p := candidate.Parent
	p.State = neighbor.StateValid
	c.table.SetParent(p)
	c.table.ClearParentCandidate()

	c.role = RoleChild
	c.attachState = AttachIdle
	c.reattachState = ReattachStop

	c.tracker.OnRoleChangeToChild(time.Now(), c.secondsTimeout(), c.mode.Has(meshtlv.ModeRxOnWhenIdle))
	c.enableCsl(p.ExtAddr)
	c.persistState()

	if c.stats != nil {
		c.stats.IncAttachSuccess()
		c.stats.SetNeighborCount(int64(c.table.NumChildren()))
	}
	c.notifier.Signal(meshnet.ChangedRole | meshnet.ChangedParent)
}

func (c *Core) secondsTimeout() uint32 {
	return uint32(c.cfg.ChildTimeout / time.Second)
}

// enableCsl arms this device's own sampled-listening cycle against the
// just-attached parent: a sleepy child with a configured CSL period starts
// sampling and registers the parent in the radio's CSL peer table so
// enhanced acks carry the CSL IE.
func (c *Core) enableCsl(parentExt meshtlv.ExtAddr) {
	if !c.sleepy || c.cfg.CslPeriod == 0 {
		return
	}
	c.receiver.ConfigureOwn(c.cfg.CslPeriod, 0)
	if err := c.radio.EnableCsl(c.cfg.CslPeriod); err != nil {
		log.Warnf("mle: enable CSL: %v", err)
		return
	}
	if err := c.radio.AddCslExtEntry(parentExt); err != nil {
		log.Warnf("mle: add CSL parent entry: %v", err)
	}
	c.cslEnabled = true
}

// disableCsl tears the sampling cycle back down on detach.
func (c *Core) disableCsl() {
	if !c.cslEnabled {
		return
	}
	c.cslEnabled = false
	c.receiver.ConfigureOwn(0, 0)
	if err := c.radio.EnableCsl(0); err != nil {
		log.Warnf("mle: disable CSL: %v", err)
	}
	if p := c.table.Parent(); p != nil {
		if err := c.radio.ClearCslExtEntry(p.ExtAddr); err != nil {
			log.Warnf("mle: clear CSL parent entry: %v", err)
		}
	}
}

// CslReceiver exposes the receive-side CSL cycle for the MAC glue that
// arms timed receives off its window schedule.
func (c *Core) CslReceiver() *csl.Receiver { return c.receiver }

// CslScheduler exposes the transmit-side CSL window selector for the MAC
// glue driving indirect delivery.
func (c *Core) CslScheduler() *csl.Scheduler { return c.scheduler }

// IndirectSender exposes the sleepy-peer queue manager, used together
// with CslScheduler by the delivery glue.
func (c *Core) IndirectSender() *indirect.Sender { return c.indirect }

// SetDeviceMode updates this device's own Mode TLV content, scheduling a
// Child Update Request to inform the parent if currently attached.
func (c *Core) SetDeviceMode(mode meshtlv.DeviceMode) error {
	if mode == c.mode {
		return nil
	}
	c.mode = mode
	c.sleepy = !mode.Has(meshtlv.ModeRxOnWhenIdle)
	if c.role == RoleChild {
		c.scheduleChildUpdateRequest(time.Now())
	}
	return nil
}

// SetTimeout updates this device's keep-alive timeout, re-arming the
// retransmission tracker's keep-alive timer and notifying the parent via
// a Child Update Request.
func (c *Core) SetTimeout(seconds uint32) error {
	c.cfg.ChildTimeout = time.Duration(seconds) * time.Second
	if c.role == RoleChild {
		c.tracker.OnRoleChangeToChild(time.Now(), seconds, c.mode.Has(meshtlv.ModeRxOnWhenIdle))
		c.scheduleChildUpdateRequest(time.Now())
	}
	return nil
}

func (c *Core) scheduleChildUpdateRequest(now time.Time) {
	p := c.table.Parent()
	if p == nil {
		return
	}
	c.delayed.Schedule(delayed.MessageChildUpdateRequestAsChild, NetipFromExt(p.ExtAddr), now, 0, nil)
}

// Tick advances every timer-driven collaborator by one cooperative
// scheduling step: the attach cycle's own deadlines, the retransmission
// tracker, and the delayed sender (spec.md §5's single-threaded loop).
func (c *Core) Tick(now time.Time) {
	if c.role == RoleDisabled {
		return
	}
	c.tracker.Tick(now)
	c.delayed.Tick(now)
	c.tickAttach(now)
	c.tickGracefulDetach(now)
	c.tickAnnounce(now)
	c.tickDiscovery(now)
}

// onRetxExhausted is retx.Tracker's OnDetach callback: both tracks ran out
// of attempts, so this device has lost its parent (spec.md §4.2).
func (c *Core) onRetxExhausted() {
	log.Warnf("mle: retransmission tracker exhausted, becoming detached")
	c.incDetach()
	c.BecomeDetached()
}

func (c *Core) incDrop(kind meshnet.Kind) {
	if c.stats != nil {
		c.stats.IncDrop(kind)
	}
}

func (c *Core) incDetach() {
	if c.stats != nil {
		c.stats.IncDetach()
	}
}

func (c *Core) sendChildUpdateRequestKeepAlive() {
	c.scheduleChildUpdateRequest(time.Now())
}

func (c *Core) sendDataRequest() {
	p := c.table.Parent()
	if p == nil {
		return
	}
	c.delayed.Schedule(delayed.MessageDataRequest, NetipFromExt(p.ExtAddr), time.Now(), 0, nil)
}

// HandleDatagram is the production entry point for a received MLE UDP
// datagram: it enforces the hop-limit convention, splits off the
// security-suite byte, and for secured frames resolves the sender's key
// sequence from the wire key id before handing decrypted content to
// handleSecuredMessage.
func (c *Core) HandleDatagram(ctx context.Context, now time.Time, hopLimit int, raw []byte, srcExt meshtlv.ExtAddr) error {
	const op = "mle.HandleDatagram"
	if hopLimit != HopLimit {
		c.incDrop(meshnet.KindDrop)
		return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("hop limit %d != %d", hopLimit, HopLimit))
	}
	if len(raw) < 1 {
		return meshnet.NewError(op, meshnet.KindParse, fmt.Errorf("empty datagram"))
	}
	suite, body := raw[0], raw[1:]
	switch suite {
	case suiteNone:
		msg, err := meshtlv.ParseUnsecured(body)
		if err != nil {
			return meshnet.NewError(op, meshnet.KindParse, err)
		}
		if msg.Command != meshtlv.CommandDiscoveryRequest && msg.Command != meshtlv.CommandDiscoveryResponse {
			return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("unsecured command %s not permitted", msg.Command))
		}
		return c.handleDiscovery(now, srcExt, msg)
	case suiteSecured:
		return c.handleSecuredDatagram(now, srcExt, body)
	default:
		return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("unknown security suite %d", suite))
	}
}

// Security-suite byte values (spec.md §6).
const (
	suiteSecured = 0
	suiteNone    = 255
)

func (c *Core) handleSecuredDatagram(now time.Time, srcExt meshtlv.ExtAddr, body []byte) error {
	const op = "mle.handleSecuredDatagram"
	p := c.table.FindByExtAddress(srcExt, neighbor.FilterAny)

	base := c.currentKeySeq
	if p != nil {
		base = p.KeySequence
	}

	var resolvedSeq meshtlv.KeySequence
	msg, err := meshtlv.OpenMessage(body, srcExt, func(sh meshtlv.SecurityHeader) (meshtlv.KeyMaterial, error) {
		resolvedSeq = meshtlv.ResolveKeySequence(base, sh.KeyIndex)
		return c.keys.KeyForSequence(resolvedSeq)
	})
	if err != nil {
		c.incDrop(meshnet.KindSecurity)
		return meshnet.NewError(op, meshnet.KindSecurity, err)
	}
	return c.handleSecuredMessage(now, srcExt, resolvedSeq, msg.Security, msg.Command, msg.Payload)
}

// handleSecuredMessage is the pure, already-decrypted core of incoming
// secured-datagram processing: duplicate/frame-counter checks, key
// sequence adoption, and dispatch to the per-command handler. Kept
// separate from HandleDatagram/handleSecuredDatagram so the security
// policy itself is testable without driving real AES-CCM frames through
// every test (spec.md §8's key-sequence scenarios).
func (c *Core) handleSecuredMessage(now time.Time, srcExt meshtlv.ExtAddr, msgSeq meshtlv.KeySequence, sh meshtlv.SecurityHeader, cmd meshtlv.Command, payload []byte) error {
	const op = "mle.handleSecuredMessage"

	p := c.table.FindByExtAddress(srcExt, neighbor.FilterAny)
	var neighborState neighbor.State
	var neighborSeq meshtlv.KeySequence
	var neighborCounter uint32
	if p != nil {
		neighborState = p.State
		neighborSeq = p.KeySequence
		neighborCounter = p.MleFrameCounter
	}

	if p != nil {
		switch CheckFrameCounter(neighborSeq, msgSeq, neighborCounter, sh.FrameCounter) {
		case FrameDuplicateUpdateRadio:
			p.LastHeard = now
			c.incDrop(meshnet.KindDuplicated)
			return meshnet.NewError(op, meshnet.KindDuplicated, nil)
		case FrameDuplicateDrop:
			c.incDrop(meshnet.KindDuplicated)
			return meshnet.NewError(op, meshnet.KindDuplicated, nil)
		}
	}

	tlvs, err := meshtlv.ReadTLVs(payload)
	if err != nil {
		c.incDrop(meshnet.KindParse)
		return meshnet.NewError(op, meshnet.KindParse, err)
	}

	challengeMatched := c.challengeMatchesOutstanding(cmd, tlvs)
	class := ClassifyMessage(cmd, challengeMatched)

	if ShouldAdoptKeySequence(class, neighborState, c.currentKeySeq, msgSeq) {
		c.adoptKeySequence(msgSeq)
		if p != nil {
			p.KeySequence = msgSeq
			p.MleFrameCounter = 0
		}
	} else if p != nil && msgSeq != p.KeySequence && class == ClassPeer {
		c.reestablishLinkWithNeighbor(now, p)
		c.incDrop(meshnet.KindSecurity)
		return meshnet.NewError(op, meshnet.KindSecurity, fmt.Errorf("key sequence mismatch from peer-class message"))
	}

	if p != nil {
		p.MleFrameCounter = sh.FrameCounter + 1
		p.LastHeard = now
	}

	if c.stats != nil {
		c.stats.IncRX(cmd)
	}
	return c.dispatch(now, srcExt, cmd, tlvs)
}

// adoptKeySequence moves this device's own idea of the current key
// sequence forward and signals observers (spec.md §4.8's key-sequence
// adoption policy; spec.md §8's invariant that adoption only ever moves
// forward).
func (c *Core) adoptKeySequence(seq meshtlv.KeySequence) {
	if seq <= c.currentKeySeq {
		return
	}
	c.currentKeySeq = seq
	c.persistState()
	if c.stats != nil {
		c.stats.IncKeySequenceAdopted()
	}
	c.notifier.Signal(meshnet.ChangedKeySequence)
}

// challengeMatchesOutstanding reports whether an Authoritative-candidate
// command's Response TLV echoes a challenge this device currently has
// outstanding (a just-sent ParentRequest's or ChildIdRequest's
// Challenge). Non-authoritative commands trivially return false since
// ClassifyMessage never consults it for them.
func (c *Core) challengeMatchesOutstanding(cmd meshtlv.Command, tlvs []meshtlv.TLV) bool {
	if cmd != meshtlv.CommandParentResponse && cmd != meshtlv.CommandChildIDResponse {
		return false
	}
	t := meshtlv.FindTLV(tlvs, meshtlv.TypeResponse)
	if t == nil {
		return false
	}
	resp, ok := t.(*meshtlv.ChallengeTLV)
	if !ok {
		return false
	}
	return resp.Value != nil && c.outstandingChallenge() != nil && bytesEqual(resp.Value, c.outstandingChallenge())
}

func (c *Core) outstandingChallenge() []byte {
	cand := c.table.ParentCandidate()
	if cand.Challenge == (meshtlv.Challenge{}) {
		return nil
	}
	return cand.Challenge[:]
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// dispatch routes a verified, classified message to its per-command
// handler. Commands this device's role never needs to act on are
// silently dropped (Kind returned is KindNone to distinguish "nothing to
// do" from an error).
func (c *Core) dispatch(now time.Time, srcExt meshtlv.ExtAddr, cmd meshtlv.Command, tlvs []meshtlv.TLV) error {
	switch cmd {
	case meshtlv.CommandParentResponse:
		return c.onParentResponse(now, srcExt, tlvs)
	case meshtlv.CommandChildIDResponse:
		return c.onChildIDResponse(now, srcExt, tlvs)
	case meshtlv.CommandChildUpdateRequest:
		return c.onChildUpdateRequest(now, srcExt, tlvs)
	case meshtlv.CommandChildUpdateResponse:
		return c.onChildUpdateResponse(now, srcExt, tlvs)
	case meshtlv.CommandAnnounce:
		return c.onAnnounce(now, srcExt, tlvs)
	case meshtlv.CommandDataResponse:
		return c.onDataResponse(now, srcExt, tlvs)
	case meshtlv.CommandAdvertisement:
		return c.onAdvertisement(now, srcExt, tlvs)
	case meshtlv.CommandParentRequest:
		if c.subChild == nil {
			return nil
		}
		return c.subChild.HandleParentRequest(context.Background(), now, srcExt, tlvs)
	case meshtlv.CommandLinkRequest:
		if c.subChild == nil {
			return nil
		}
		return c.subChild.HandleLinkRequest(context.Background(), now, srcExt, tlvs)
	case meshtlv.CommandChildIDRequest:
		if c.subChild == nil {
			return nil
		}
		return c.subChild.HandleChildIDRequest(context.Background(), now, srcExt, tlvs)
	default:
		return nil
	}
}

// onAdvertisement refreshes the parent's liveness and, when the parent
// advertises a network data version this device doesn't hold yet,
// schedules a Data Request through the delayed sender (whose coalescing
// rule absorbs the bursts of Advertisements a busy partition produces).
func (c *Core) onAdvertisement(now time.Time, srcExt meshtlv.ExtAddr, tlvs []meshtlv.TLV) error {
	p := c.table.Parent()
	if p == nil || p.ExtAddr != srcExt {
		return nil
	}
	p.LastHeard = now
	if ld, ok := findLeaderData(tlvs); ok && ld.DataVersion != c.netData.Version() {
		c.delayed.Schedule(delayed.MessageDataRequest, NetipFromExt(p.ExtAddr), now, 0, nil)
	}
	return nil
}

// onDataResponse consumes a Data Response, the parent's answer to this
// device's own Data Request: apply any piggybacked Network Data and close
// out the retransmission tracker's Data Request track.
func (c *Core) onDataResponse(now time.Time, srcExt meshtlv.ExtAddr, tlvs []meshtlv.TLV) error {
	const op = "mle.onDataResponse"
	p := c.table.Parent()
	if p == nil || p.ExtAddr != srcExt {
		return meshnet.NewError(op, meshnet.KindDrop, fmt.Errorf("data response from non-parent"))
	}
	p.LastHeard = now
	if ld, ok := findLeaderData(tlvs); ok {
		if nd := meshtlv.FindTLV(tlvs, meshtlv.TypeNetworkData); nd != nil {
			if raw, ok := meshtlv.RawValueOf(nd); ok {
				if err := c.netData.Apply(raw, ld.DataVersion, ld.StableDataVersion); err != nil {
					log.Warnf("mle: apply network data: %v", err)
				} else {
					c.notifier.Signal(meshnet.ChangedNetworkData)
				}
			}
		}
	}
	c.tracker.OnDataResponseRx()
	return nil
}

func (c *Core) handleDiscovery(now time.Time, srcExt meshtlv.ExtAddr, msg *meshtlv.Message) error {
	// Discovery request/response handling belongs to the channel/PAN scan
	// path (announce.go); nothing in the hop-limited secured path needs
	// it, so the unsecured entry point just forwards.
	return c.onDiscovery(now, srcExt, msg)
}
