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

package meshtlv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() KeyMaterial {
	var k KeyMaterial
	k.Sequence = 42
	for i := range k.Key {
		k.Key[i] = byte(i)
	}
	return k
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := testKey()
	source := ExtAddr{1, 2, 3, 4, 5, 6, 7, 8}
	sh := SecurityHeader{Control: securityControlDefault, FrameCounter: 99}
	payload, err := AppendTLVs(&SourceAddressTLV{Rloc16: 0x2000})
	require.NoError(t, err)

	m := &Message{Security: sh, Command: CommandChildIDRequest, Payload: payload}
	wire, err := SealMessage(m, key, source)
	require.NoError(t, err)
	require.Greater(t, len(wire), frameHeadLen+len(payload)) // MIC appended

	opened, err := OpenMessage(wire, source, func(gotSH SecurityHeader) (KeyMaterial, error) {
		require.Equal(t, sh, gotSH)
		return key, nil
	})
	require.NoError(t, err)
	require.Equal(t, CommandChildIDRequest, opened.Command)
	require.Equal(t, payload, opened.Payload)
}

func TestOpenRejectsTamperedFrame(t *testing.T) {
	key := testKey()
	source := ExtAddr{1, 2, 3, 4, 5, 6, 7, 8}
	sh := SecurityHeader{Control: securityControlDefault, FrameCounter: 1}
	payload := []byte{1, 2, 3, 4}

	m := &Message{Security: sh, Command: CommandDataRequest, Payload: payload}
	wire, err := SealMessage(m, key, source)
	require.NoError(t, err)

	wire[len(wire)-1] ^= 0xff // flip a MIC byte

	_, err = OpenMessage(wire, source, func(SecurityHeader) (KeyMaterial, error) { return key, nil })
	require.ErrorIs(t, err, ErrSecurity)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	key := testKey()
	wrongKey := testKey()
	wrongKey.Key[0] ^= 0xff

	source := ExtAddr{9}
	sh := SecurityHeader{Control: securityControlDefault, FrameCounter: 5}
	m := &Message{Security: sh, Command: CommandAdvertisement, Payload: []byte{0xaa}}
	wire, err := SealMessage(m, key, source)
	require.NoError(t, err)

	_, err = OpenMessage(wire, source, func(SecurityHeader) (KeyMaterial, error) { return wrongKey, nil })
	require.ErrorIs(t, err, ErrSecurity)
}
