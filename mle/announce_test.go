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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openthread-go/meshlink/meshtlv"
)

func announceTLVs(seconds uint64, channel uint16) []meshtlv.TLV {
	return []meshtlv.TLV{
		&meshtlv.ChannelTLV{Channel: channel},
		meshtlv.NewActiveTimestampTLV(meshtlv.TimestampValue{Seconds: seconds}),
	}
}

func TestOnAnnounceIgnoresStaleTimestamp(t *testing.T) {
	core, radio, _ := newTestCore(t)
	radio.EXPECT().Channel().Return(uint8(11)).AnyTimes()

	core.announceTimestamp = meshtlv.TimestampValue{Seconds: 100}

	err := core.onAnnounce(time.Now(), meshtlv.ExtAddr{}, announceTLVs(50, 15))
	require.NoError(t, err)
	require.Equal(t, announceIdle, core.announceState)
	require.Equal(t, uint64(100), core.announceTimestamp.Seconds)
}

func TestOnAnnounceSameChannelJustAdvancesTimestamp(t *testing.T) {
	core, radio, _ := newTestCore(t)
	radio.EXPECT().Channel().Return(uint8(11)).AnyTimes()

	err := core.onAnnounce(time.Now(), meshtlv.ExtAddr{}, announceTLVs(200, 11))
	require.NoError(t, err)
	require.Equal(t, announceIdle, core.announceState)
	require.Equal(t, uint64(200), core.announceTimestamp.Seconds)
}

func TestOnAnnounceDifferentChannelArmsDelayedSwitch(t *testing.T) {
	core, radio, _ := newTestCore(t)
	radio.EXPECT().Channel().Return(uint8(11)).AnyTimes()

	now := time.Now()
	err := core.onAnnounce(now, meshtlv.ExtAddr{}, announceTLVs(200, 20))
	require.NoError(t, err)
	require.Equal(t, announcePendingSwitch, core.announceState)
	require.Equal(t, uint8(20), core.announceChannel)

	radio.EXPECT().SetChannel(uint8(20)).Return(nil)
	core.Tick(now.Add(core.cfg.AnnounceDelay + time.Millisecond))
	require.Equal(t, announceIdle, core.announceState)
	// BecomeDetached re-arms the Start delay and clears any parent.
	require.Equal(t, AttachStart, core.attachState)
}

func TestOnAnnounceDelayedSwitchDoesNotFireEarly(t *testing.T) {
	core, radio, _ := newTestCore(t)
	radio.EXPECT().Channel().Return(uint8(11)).AnyTimes()

	now := time.Now()
	require.NoError(t, core.onAnnounce(now, meshtlv.ExtAddr{}, announceTLVs(200, 20)))

	core.Tick(now.Add(core.cfg.AnnounceDelay / 2))
	require.Equal(t, announcePendingSwitch, core.announceState)
}

func TestStartDiscoveryDeliversResponseThenExpires(t *testing.T) {
	core, radio, _ := newTestCore(t)
	radio.EXPECT().SendMulticast(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	now := time.Now()
	var got []meshtlv.ExtAddr
	err := core.StartDiscovery(now, time.Second, func(srcExt meshtlv.ExtAddr, panID uint16, channel uint8) {
		got = append(got, srcExt)
	})
	require.NoError(t, err)

	payload, err := meshtlv.AppendTLVs(
		&meshtlv.PanIDTLV{PanID: 0x1234},
		&meshtlv.ChannelTLV{Channel: 15},
	)
	require.NoError(t, err)
	msg := &meshtlv.Message{Command: meshtlv.CommandDiscoveryResponse, Payload: payload}
	srcExt := meshtlv.ExtAddr{7, 7, 7, 7, 7, 7, 7, 7}

	require.NoError(t, core.onDiscovery(now, srcExt, msg))
	require.Equal(t, []meshtlv.ExtAddr{srcExt}, got)

	core.tickDiscovery(now.Add(2 * time.Second))
	require.Nil(t, core.discoveryCallback)
}
