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
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
)

// announceState tracks this device's position in the Announce-driven
// channel discovery cycle (spec.md §4.8: "a node that hears of a newer
// active timestamp on a different channel migrates to it").
type announceState uint8

const (
	announceIdle announceState = iota
	announcePendingSwitch
)

// announceTimestampNewer reports whether ts postdates the last Announce
// timestamp this device has acted on.
func (c *Core) announceTimestampNewer(ts meshtlv.TimestampValue) bool {
	if ts.Seconds != c.announceTimestamp.Seconds {
		return ts.Seconds > c.announceTimestamp.Seconds
	}
	return ts.Ticks > c.announceTimestamp.Ticks
}

// onAnnounce implements the channel-discovery side of spec.md §4.8: an
// Announce advertising a strictly newer active timestamp schedules a
// channel switch (after AnnounceDelay, to let duplicate Announces on the
// old channel settle) followed by a fresh attach cycle on the new channel.
func (c *Core) onAnnounce(now time.Time, _ meshtlv.ExtAddr, tlvs []meshtlv.TLV) error {
	const op = "mle.onAnnounce"
	chT := meshtlv.FindTLV(tlvs, meshtlv.TypeChannel)
	tsT := meshtlv.FindTLV(tlvs, meshtlv.TypeActiveTimestamp)
	if chT == nil || tsT == nil {
		return meshnet.NewError(op, meshnet.KindParse, errMissingTLV)
	}
	ch, ok := chT.(*meshtlv.ChannelTLV)
	if !ok {
		return meshnet.NewError(op, meshnet.KindParse, errMissingTLV)
	}
	ts, ok := tsT.(*meshtlv.TimestampTLV)
	if !ok {
		return meshnet.NewError(op, meshnet.KindParse, errMissingTLV)
	}
	if !c.announceTimestampNewer(ts.TS) {
		return nil
	}
	if uint8(ch.Channel) == c.radio.Channel() {
		c.announceTimestamp = ts.TS
		return nil
	}
	c.announceTimestamp = ts.TS
	c.announceChannel = uint8(ch.Channel)
	c.announceState = announcePendingSwitch
	c.announceDeadline = now.Add(c.cfg.AnnounceDelay)
	return nil
}

// tickAnnounce fires a pending channel switch once AnnounceDelay has
// elapsed, restarting the attach cycle on the new channel.
func (c *Core) tickAnnounce(now time.Time) {
	if c.announceState != announcePendingSwitch {
		return
	}
	if now.Before(c.announceDeadline) {
		return
	}
	c.announceState = announceIdle
	if err := c.radio.SetChannel(c.announceChannel); err != nil {
		log.Warnf("mle: announce-driven channel switch to %d: %v", c.announceChannel, err)
		return
	}
	if c.role != RoleDisabled {
		c.BecomeDetached()
	}
}

// sendAnnounce broadcasts this device's own active timestamp/channel/PAN,
// used after a local dataset change to tell the rest of the partition
// (spec.md §4.8's channel discovery, the sending side).
func (c *Core) sendAnnounce(activeTimestamp meshtlv.TimestampValue, panID uint16) error {
	tlvs := []meshtlv.TLV{
		meshtlv.NewActiveTimestampTLV(activeTimestamp),
		&meshtlv.ChannelTLV{Channel: uint16(c.radio.Channel())},
		&meshtlv.PanIDTLV{PanID: panID},
	}
	return c.sealAndSendMulticast(meshnet.ScopeLinkLocalAllThreadNodes, meshtlv.CommandAnnounce, tlvs...)
}

// DiscoveryCallback receives one scan result per DiscoveryResponse heard
// during an active discovery scan.
type DiscoveryCallback func(srcExt meshtlv.ExtAddr, panID uint16, channel uint8)

// onDiscovery handles the unsecured Discovery Request/Response exchange.
// This device never answers Discovery Requests itself (answering them is a
// router/leader responsibility, out of scope for an MTD-only build); it
// only consumes Discovery Responses while a scan this device itself
// started is outstanding.
func (c *Core) onDiscovery(_ time.Time, srcExt meshtlv.ExtAddr, msg *meshtlv.Message) error {
	if msg.Command != meshtlv.CommandDiscoveryResponse || c.discoveryCallback == nil {
		return nil
	}
	tlvs, err := meshtlv.ReadTLVs(msg.Payload)
	if err != nil {
		return meshnet.NewError("mle.onDiscovery", meshnet.KindParse, err)
	}
	panT := meshtlv.FindTLV(tlvs, meshtlv.TypePanID)
	chT := meshtlv.FindTLV(tlvs, meshtlv.TypeChannel)
	if panT == nil || chT == nil {
		return nil
	}
	pan, ok := panT.(*meshtlv.PanIDTLV)
	if !ok {
		return nil
	}
	ch, ok := chT.(*meshtlv.ChannelTLV)
	if !ok {
		return nil
	}
	c.discoveryCallback(srcExt, pan.PanID, uint8(ch.Channel))
	return nil
}

// StartDiscovery broadcasts an unsecured Discovery Request and forwards
// every Discovery Response heard until deadline to cb. Calling it again
// while a scan is outstanding replaces the previous callback.
func (c *Core) StartDiscovery(now time.Time, duration time.Duration, cb DiscoveryCallback) error {
	const op = "mle.StartDiscovery"
	c.discoveryCallback = cb
	c.discoveryDeadline = now.Add(duration)

	payload, err := meshtlv.AppendTLVs()
	if err != nil {
		return meshnet.NewError(op, meshnet.KindFailed, err)
	}
	raw := append([]byte{suiteNone, byte(meshtlv.CommandDiscoveryRequest)}, payload...)
	if err := c.radio.SendMulticast(context.Background(), meshnet.ScopeLinkLocalAllRouters, raw); err != nil {
		return meshnet.NewError(op, meshnet.KindFailed, err)
	}
	return nil
}

func (c *Core) tickDiscovery(now time.Time) {
	if c.discoveryCallback == nil {
		return
	}
	if now.Before(c.discoveryDeadline) {
		return
	}
	c.discoveryCallback = nil
}
