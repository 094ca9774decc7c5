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
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openthread-go/meshlink/csl"
	"github.com/openthread-go/meshlink/delayed"
	"github.com/openthread-go/meshlink/indirect"
	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/neighbor"
	"github.com/openthread-go/meshlink/retx"
)

// NewSystem wires a Core against freshly constructed instances of every
// sibling collaborator it owns directly (the neighbor table, retx
// tracker, delayed sender, CSL scheduler/receiver, indirect sender,
// notifier). retx.Tracker and delayed.Sender both take callbacks that
// call back into Core, but Core itself can't exist until they do; the
// cycle is broken the way a two-phase constructor normally would be, by
// declaring the *Core variable first and letting the callback closures
// capture it by reference, so their bodies only dereference it once the
// caller actually invokes them (after core is assigned below).
func NewSystem(
	cfg *Config,
	radio meshnet.RadioPort,
	netData meshnet.NetworkDataStore,
	settings meshnet.SettingsStore,
	forwarder meshnet.MeshForwarder,
	keys KeyStore,
) *Core {
	table := neighbor.NewTable(cfg.MaxChildren)
	notifier := meshnet.NewNotifier()
	arena := &meshnet.Arena{}
	indirectSender := indirect.New(arena, forwarder)
	scheduler := csl.New(csl.FrameRequestAheadUs(cfg.FrameRequestAheadUs, radio.BusSpeedHz(), radio.BusLatencyUs()))

	var ownCsl neighbor.CslInfo
	receiver := csl.NewReceiver(cfg.HasReceiveTimingHW, cfg.ReceiveTimeAheadUs, &ownCsl)
	receiver.SetLocalClock(radio.CslAccuracyPPM(), radio.CslUncertaintyUs())

	var core *Core

	tracker := retx.New(retx.Config{
		RetxDelay:            cfg.RetxDelay,
		JitterMax:            cfg.RetxJitterMax,
		MaxAttempts:          cfg.RetxMaxAttempts,
		MaxKeepAliveAttempts: cfg.RetxMaxKeepAliveTries,
		CSLPeriod:            time.Duration(cfg.CslPeriod) * 10 * time.Microsecond,
	}, retx.Callbacks{
		SendChildUpdateRequest: func() { core.sendChildUpdateRequestKeepAlive() },
		SendDataRequest:        func() { core.sendDataRequest() },
		OnDetach:               func() { core.onRetxExhausted() },
	})

	sender := delayed.New(func(s delayed.Schedule) { core.dispatchDelayed(s) })

	core = NewCore(cfg, table, tracker, sender, scheduler, receiver, indirectSender, radio, netData, settings, notifier, forwarder, keys)
	return core
}

// dispatchDelayed is delayed.Sender's dispatch callback: it fires once per
// due Schedule record and routes it to the send this device actually owes.
// Router/leader-only message kinds (ParentResponse, Advertisement,
// multicast DataResponse, LinkAccept, LinkRequest, DiscoveryResponse) are
// never scheduled by this MTD-only Core, so they just log instead of
// panicking if something upstream ever schedules one by mistake.
func (c *Core) dispatchDelayed(s delayed.Schedule) {
	switch s.Type {
	case delayed.MessageChildUpdateRequestAsChild:
		c.sendChildUpdateRequestNow(time.Now())
	case delayed.MessageDataRequest:
		c.sendDataRequestNow()
	default:
		log.Warnf("mle: delayed dispatch: unexpected message type %s for an MTD-only core", s.Type)
	}
}

func (c *Core) sendDataRequestNow() {
	p := c.table.Parent()
	if p == nil {
		return
	}
	tlvs := []meshtlv.TLV{
		&meshtlv.TlvRequestTLV{Types: []meshtlv.Type{meshtlv.TypeNetworkData}},
	}
	if err := c.sealAndSend(p.ExtAddr, meshtlv.CommandDataRequest, tlvs...); err != nil {
		log.Warnf("mle: send DataRequest: %v", err)
		return
	}
	c.tracker.OnDataRequestTx(time.Now(), c.sleepy)
}
