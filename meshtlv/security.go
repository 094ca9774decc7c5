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
	"crypto/aes"
	"fmt"

	"github.com/aead/ccm"
)

// MICLen is the length, in bytes, of the message integrity code appended
// to every secured MLE frame (32-bit MIC, the mode used throughout MLE).
const MICLen = 4

// nonceLen and the CCM tag length follow IEEE 802.15.4's AES-CCM* profile
// as reused by MLE: a 13-byte nonce (8-byte source extended address, 4-byte
// frame counter, 1-byte security level) and a 4-byte MIC.
const nonceLen = 13

// KeyMaterial is a single 128-bit MLE/MAC key, identified by the key
// sequence it was derived for.
type KeyMaterial struct {
	Sequence KeySequence
	Key      [16]byte
}

// buildNonce constructs the 13-byte CCM nonce: source extended address (8),
// frame counter (4), security level (1).
func buildNonce(source ExtAddr, frameCounter uint32, securityLevel uint8) [nonceLen]byte {
	var n [nonceLen]byte
	copy(n[0:8], source[:])
	n[8] = byte(frameCounter >> 24)
	n[9] = byte(frameCounter >> 16)
	n[10] = byte(frameCounter >> 8)
	n[11] = byte(frameCounter)
	n[12] = securityLevel
	return n
}

// buildAAD constructs the additional authenticated data covering the
// plaintext security header and command byte: everything in the frame
// that isn't encrypted but must still be authenticated.
func buildAAD(securityHeader []byte, command Command) []byte {
	aad := make([]byte, len(securityHeader)+1)
	copy(aad, securityHeader)
	aad[len(securityHeader)] = byte(command)
	return aad
}

func newCCM(key [16]byte) (ccm.CCM, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("meshtlv: aes.NewCipher: %w", err)
	}
	c, err := ccm.NewCCMWithNonceAndTagSizes(block, nonceLen, MICLen)
	if err != nil {
		return nil, fmt.Errorf("meshtlv: ccm init: %w", err)
	}
	return c, nil
}

// Seal encrypts payload in place and appends the MIC, producing the bytes
// that belong after the command byte in an on-wire secured frame. source is
// the sending device's extended address, used in the nonce construction.
func Seal(key KeyMaterial, source ExtAddr, sh SecurityHeader, command Command, payload []byte) ([]byte, error) {
	c, err := newCCM(key.Key)
	if err != nil {
		return nil, err
	}
	securityLevel := uint8(sh.Control) & 0x07
	nonce := buildNonce(source, sh.FrameCounter, securityLevel)

	shBytes := make([]byte, securityHeaderLen)
	sh.marshalBinaryTo(shBytes)
	aad := buildAAD(shBytes, command)

	return c.Seal(nil, nonce[:], payload, aad), nil
}

// Open verifies and decrypts a secured frame's ciphertext, given the key
// that the frame's key sequence/key index selected and the sender's
// extended address. It returns the plaintext TLV block on success.
func Open(key KeyMaterial, source ExtAddr, sh SecurityHeader, command Command, ciphertext []byte) ([]byte, error) {
	c, err := newCCM(key.Key)
	if err != nil {
		return nil, err
	}
	securityLevel := uint8(sh.Control) & 0x07
	nonce := buildNonce(source, sh.FrameCounter, securityLevel)

	shBytes := make([]byte, securityHeaderLen)
	sh.marshalBinaryTo(shBytes)
	aad := buildAAD(shBytes, command)

	plain, err := c.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("meshtlv: %w: %v", ErrSecurity, err)
	}
	return plain, nil
}

// OpenMessage parses the wire form of a secured frame, locates the key for
// its key sequence via keyFor, and returns the decoded Message with
// Payload set to the decrypted TLV block.
func OpenMessage(b []byte, source ExtAddr, keyFor func(SecurityHeader) (KeyMaterial, error)) (*Message, error) {
	sh, cmd, ciphertext, err := peekSecurityHeader(b)
	if err != nil {
		return nil, err
	}
	key, err := keyFor(sh)
	if err != nil {
		return nil, err
	}
	plain, err := Open(key, source, sh, cmd, ciphertext)
	if err != nil {
		return nil, err
	}
	return &Message{Security: sh, Command: cmd, Payload: plain}, nil
}

// SealMessage encrypts m.Payload and returns the full on-wire frame bytes:
// security header, command byte, ciphertext, MIC.
func SealMessage(m *Message, key KeyMaterial, source ExtAddr) ([]byte, error) {
	sealed, err := Seal(key, source, m.Security, m.Command, m.Payload)
	if err != nil {
		return nil, err
	}
	out := make([]byte, frameHeadLen+len(sealed))
	n := m.Security.marshalBinaryTo(out)
	out[n] = byte(m.Command)
	copy(out[n+1:], sealed)
	return out, nil
}
