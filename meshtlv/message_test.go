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

func TestMessageMarshalBinaryTo(t *testing.T) {
	payload, err := AppendTLVs(&SourceAddressTLV{Rloc16: 0x1c00}, &TimeoutTLV{Seconds: 240})
	require.NoError(t, err)

	m := &Message{
		Security: SecurityHeader{Control: securityControlDefault, FrameCounter: 7},
		Command:  CommandChildUpdateRequest,
		Payload:  payload,
	}
	buf := make([]byte, frameHeadLen+len(payload))
	n, err := m.MarshalBinaryTo(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	sh, cmd, rest, err := peekSecurityHeader(buf)
	require.NoError(t, err)
	require.Equal(t, m.Security, sh)
	require.Equal(t, CommandChildUpdateRequest, cmd)
	require.Equal(t, payload, rest)
}

func TestTLVStartIsStableOffset(t *testing.T) {
	m := &Message{}
	require.Equal(t, securityHeaderLen+1, m.TLVStart())
}

func TestFindTLV(t *testing.T) {
	tlvs := []TLV{&ModeTLV{Mode: ModeFullThreadDevice}, &TimeoutTLV{Seconds: 10}}
	found := FindTLV(tlvs, TypeTimeout)
	require.NotNil(t, found)
	require.Equal(t, &TimeoutTLV{Seconds: 10}, found)

	require.Nil(t, FindTLV(tlvs, TypeChallenge))
}

func TestParseUnsecured(t *testing.T) {
	b := []byte{byte(CommandAnnounce), 0xaa, 0xbb}
	m, err := ParseUnsecured(b)
	require.NoError(t, err)
	require.Equal(t, CommandAnnounce, m.Command)
	require.Equal(t, []byte{0xaa, 0xbb}, m.Payload)
}

func TestParseUnsecuredEmpty(t *testing.T) {
	_, err := ParseUnsecured(nil)
	require.ErrorIs(t, err, ErrParse)
}
