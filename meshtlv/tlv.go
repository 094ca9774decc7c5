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
	"encoding/binary"
	"fmt"
)

// Type is the one-byte TLV type field.
type Type uint8

// MLE TLV types, closed set per the protocol's TLV catalog.
const (
	TypeSourceAddress       Type = 0
	TypeMode                Type = 1
	TypeTimeout             Type = 2
	TypeChallenge           Type = 3
	TypeResponse            Type = 4
	TypeLinkFrameCounter    Type = 5
	TypeLinkMargin          Type = 6 // aka LinkQuality
	TypeRoute               Type = 9
	TypeAddress16           Type = 10
	TypeLeaderData          Type = 11
	TypeNetworkData         Type = 12
	TypeTlvRequest          Type = 13
	TypeScanMask            Type = 14
	TypeConnectivity        Type = 15
	TypeMleFrameCounter     Type = 16
	TypeStatus              Type = 17
	TypeVersion             Type = 18
	TypeAddressRegistration Type = 19
	TypeChannel             Type = 20
	TypePanID               Type = 21
	TypeActiveTimestamp     Type = 22
	TypePendingTimestamp    Type = 23
	TypeActiveDataset       Type = 24
	TypePendingDataset      Type = 25
	TypeSupervisionInterval Type = 28
	TypeCslChannel          Type = 36
	TypeCslTimeout          Type = 39
	TypeCslClockAccuracy    Type = 40
	TypeLinkMetricsQuery    Type = 38
	TypeLinkMetricsReport   Type = 41

	// typeExtended marks the extended-length form: type=0xff, followed by a
	// one-byte real type, then a 2-byte big-endian length.
	typeExtended Type = 0xff
)

var typeNames = map[Type]string{
	TypeSourceAddress:       "SourceAddress",
	TypeMode:                "Mode",
	TypeTimeout:             "Timeout",
	TypeChallenge:           "Challenge",
	TypeResponse:            "Response",
	TypeLinkFrameCounter:    "LinkFrameCounter",
	TypeLinkMargin:          "LinkMargin",
	TypeRoute:               "Route",
	TypeAddress16:           "Address16",
	TypeLeaderData:          "LeaderData",
	TypeNetworkData:         "NetworkData",
	TypeTlvRequest:          "TlvRequest",
	TypeScanMask:            "ScanMask",
	TypeConnectivity:        "Connectivity",
	TypeMleFrameCounter:     "MleFrameCounter",
	TypeStatus:              "Status",
	TypeVersion:             "Version",
	TypeAddressRegistration: "AddressRegistration",
	TypeChannel:             "Channel",
	TypePanID:               "PanId",
	TypeActiveTimestamp:     "ActiveTimestamp",
	TypePendingTimestamp:    "PendingTimestamp",
	TypeActiveDataset:       "ActiveDataset",
	TypePendingDataset:      "PendingDataset",
	TypeSupervisionInterval: "SupervisionInterval",
	TypeCslChannel:          "CslChannel",
	TypeCslTimeout:          "CslTimeout",
	TypeCslClockAccuracy:    "CslClockAccuracy",
	TypeLinkMetricsQuery:    "LinkMetricsQuery",
	TypeLinkMetricsReport:   "LinkMetricsReport",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// TLV is implemented by every TLV value this codec knows how to build/read.
type TLV interface {
	Type() Type
	// MarshalBinaryTo encodes the full TLV (header + value) into b and
	// returns the number of bytes written.
	MarshalBinaryTo(b []byte) (int, error)
	// Len returns the length of the value portion, used to pick the
	// extended-length encoding when it exceeds 254 bytes.
	Len() int
}

const headShort = 2    // type byte + length byte
const headExtended = 4 // 0xff, real-type byte, 2-byte BE length

// writeHead writes a short or extended TLV header depending on valueLen.
func writeHead(b []byte, t Type, valueLen int) int {
	if valueLen > 254 {
		b[0] = byte(typeExtended)
		b[1] = byte(t)
		binary.BigEndian.PutUint16(b[2:], uint16(valueLen))
		return headExtended
	}
	b[0] = byte(t)
	b[1] = byte(valueLen)
	return headShort
}

// tlvHead is the parsed form of a TLV header, used while reading.
type tlvHead struct {
	typ      Type
	valueLen int
	headLen  int
}

// readHead parses the header at the start of b.
func readHead(b []byte) (tlvHead, error) {
	if len(b) < headShort {
		return tlvHead{}, fmt.Errorf("meshtlv: %w: short TLV header", ErrParse)
	}
	if Type(b[0]) == typeExtended {
		if len(b) < headExtended {
			return tlvHead{}, fmt.Errorf("meshtlv: %w: short extended TLV header", ErrParse)
		}
		return tlvHead{
			typ:      Type(b[1]),
			valueLen: int(binary.BigEndian.Uint16(b[2:])),
			headLen:  headExtended,
		}, nil
	}
	return tlvHead{
		typ:      Type(b[0]),
		valueLen: int(b[1]),
		headLen:  headShort,
	}, nil
}

// rawTLV is used for TLV types this codec stores but does not interpret
// (NetworkData, ActiveDataset, PendingDataset: opaque blobs owned by the
// NetworkDataStore collaborator).
type rawTLV struct {
	typ   Type
	value []byte
}

func (t *rawTLV) Type() Type { return t.typ }
func (t *rawTLV) Len() int   { return len(t.value) }

func (t *rawTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, t.typ, len(t.value))
	copy(b[n:], t.value)
	return n + len(t.value), nil
}

func newRawTLV(typ Type, value []byte) *rawTLV {
	cp := make([]byte, len(value))
	copy(cp, value)
	return &rawTLV{typ: typ, value: cp}
}

// NewRawTLV builds an opaque TLV carrying value uninterpreted, for the TLV
// types this codec never decodes itself (NetworkData, ActiveDataset,
// PendingDataset, Route, LinkMetrics*). Callers that received such a TLV
// via ReadTLVs and want to forward it unchanged, or that are assembling one
// from a blob owned by another collaborator (NetworkDataStore), use this
// instead of reaching into the unexported rawTLV type.
func NewRawTLV(typ Type, value []byte) TLV {
	return newRawTLV(typ, value)
}

// RawValueOf returns the value bytes of a TLV carried opaquely by this
// codec, and false for any TLV type decoded into its own concrete struct.
func RawValueOf(t TLV) ([]byte, bool) {
	r, ok := t.(*rawTLV)
	if !ok {
		return nil, false
	}
	return r.value, true
}

// SourceAddressTLV carries the sender's short address.
type SourceAddressTLV struct{ Rloc16 Rloc16 }

func (t *SourceAddressTLV) Type() Type { return TypeSourceAddress }
func (t *SourceAddressTLV) Len() int   { return 2 }
func (t *SourceAddressTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeSourceAddress, 2)
	binary.BigEndian.PutUint16(b[n:], uint16(t.Rloc16))
	return n + 2, nil
}

// ModeTLV carries the sender's device mode.
type ModeTLV struct{ Mode DeviceMode }

func (t *ModeTLV) Type() Type { return TypeMode }
func (t *ModeTLV) Len() int   { return 1 }
func (t *ModeTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeMode, 1)
	b[n] = byte(t.Mode)
	return n + 1, nil
}

// TimeoutTLV carries the desired keep-alive timeout in seconds.
type TimeoutTLV struct{ Seconds uint32 }

func (t *TimeoutTLV) Type() Type { return TypeTimeout }
func (t *TimeoutTLV) Len() int   { return 4 }
func (t *TimeoutTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeTimeout, 4)
	binary.BigEndian.PutUint32(b[n:], t.Seconds)
	return n + 4, nil
}

// ChallengeTLV carries an attach challenge (or, on Response, the echoed value).
type ChallengeTLV struct {
	typ   Type
	Value []byte
}

func (t *ChallengeTLV) Type() Type { return t.typ }
func (t *ChallengeTLV) Len() int   { return len(t.Value) }
func (t *ChallengeTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, t.typ, len(t.Value))
	copy(b[n:], t.Value)
	return n + len(t.Value), nil
}

// NewChallengeTLV builds a Challenge TLV.
func NewChallengeTLV(v []byte) *ChallengeTLV { return &ChallengeTLV{typ: TypeChallenge, Value: v} }

// NewResponseTLV builds a Response TLV echoing back a challenge.
func NewResponseTLV(v []byte) *ChallengeTLV { return &ChallengeTLV{typ: TypeResponse, Value: v} }

// FrameCounterTLV carries either a link (MAC) or MLE frame counter.
type FrameCounterTLV struct {
	typ     Type
	Counter uint32
}

func (t *FrameCounterTLV) Type() Type { return t.typ }
func (t *FrameCounterTLV) Len() int   { return 4 }
func (t *FrameCounterTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, t.typ, 4)
	binary.BigEndian.PutUint32(b[n:], t.Counter)
	return n + 4, nil
}

// NewLinkFrameCounterTLV builds a LinkFrameCounter TLV.
func NewLinkFrameCounterTLV(c uint32) *FrameCounterTLV {
	return &FrameCounterTLV{typ: TypeLinkFrameCounter, Counter: c}
}

// NewMleFrameCounterTLV builds an MleFrameCounter TLV.
func NewMleFrameCounterTLV(c uint32) *FrameCounterTLV {
	return &FrameCounterTLV{typ: TypeMleFrameCounter, Counter: c}
}

// LinkMarginTLV carries the sender's estimate of two-way link margin, in dB.
type LinkMarginTLV struct{ Margin LinkMargin }

func (t *LinkMarginTLV) Type() Type { return TypeLinkMargin }
func (t *LinkMarginTLV) Len() int   { return 1 }
func (t *LinkMarginTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeLinkMargin, 1)
	b[n] = byte(t.Margin)
	return n + 1, nil
}

// Address16TLV carries an assigned RLOC16.
type Address16TLV struct{ Rloc16 Rloc16 }

func (t *Address16TLV) Type() Type { return TypeAddress16 }
func (t *Address16TLV) Len() int   { return 2 }
func (t *Address16TLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeAddress16, 2)
	binary.BigEndian.PutUint16(b[n:], uint16(t.Rloc16))
	return n + 2, nil
}

// LeaderDataTLV wraps LeaderData.
type LeaderDataTLV struct{ Data LeaderData }

func (t *LeaderDataTLV) Type() Type { return TypeLeaderData }
func (t *LeaderDataTLV) Len() int   { return 8 }
func (t *LeaderDataTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeLeaderData, 8)
	m, err := t.Data.MarshalBinaryTo(b[n:])
	return n + m, err
}

// TlvRequestTLV lists up to 6 TLV types the sender wants included in the response.
type TlvRequestTLV struct{ Types []Type }

func (t *TlvRequestTLV) Type() Type { return TypeTlvRequest }
func (t *TlvRequestTLV) Len() int   { return len(t.Types) }
func (t *TlvRequestTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeTlvRequest, len(t.Types))
	for i, tp := range t.Types {
		b[n+i] = byte(tp)
	}
	return n + len(t.Types), nil
}

// ScanMaskTLV restricts a ParentRequest to routers, REEDs, or sub-child-capable MTDs.
type ScanMaskTLV struct{ Mask ScanMask }

func (t *ScanMaskTLV) Type() Type { return TypeScanMask }
func (t *ScanMaskTLV) Len() int   { return 1 }
func (t *ScanMaskTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeScanMask, 1)
	b[n] = byte(t.Mask)
	return n + 1, nil
}

// Connectivity summarizes how well-connected a prospective parent is, used
// in the candidate ranking cascade (spec.md §4.8.4).
type Connectivity struct {
	ParentPriority   int8
	LinkQuality3     uint8
	LinkQuality2     uint8
	LinkQuality1     uint8
	LeaderCost       uint8
	IDSequence       uint8
	ActiveRouters    uint8
	SEDBufferSize    uint16
	SEDDatagramCount uint8
}

// ConnectivityTLV wraps Connectivity.
type ConnectivityTLV struct{ Data Connectivity }

func (t *ConnectivityTLV) Type() Type { return TypeConnectivity }
func (t *ConnectivityTLV) Len() int   { return 10 }
func (t *ConnectivityTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeConnectivity, 10)
	v := b[n:]
	v[0] = byte(t.Data.ParentPriority)
	v[1] = t.Data.LinkQuality3
	v[2] = t.Data.LinkQuality2
	v[3] = t.Data.LinkQuality1
	v[4] = t.Data.LeaderCost
	v[5] = t.Data.IDSequence
	v[6] = t.Data.ActiveRouters
	binary.BigEndian.PutUint16(v[7:], t.Data.SEDBufferSize)
	v[9] = t.Data.SEDDatagramCount
	return n + 10, nil
}

func unmarshalConnectivity(b []byte) (Connectivity, error) {
	if len(b) < 10 {
		return Connectivity{}, fmt.Errorf("meshtlv: %w: short Connectivity", ErrParse)
	}
	return Connectivity{
		ParentPriority:   int8(b[0]),
		LinkQuality3:     b[1],
		LinkQuality2:     b[2],
		LinkQuality1:     b[3],
		LeaderCost:       b[4],
		IDSequence:       b[5],
		ActiveRouters:    b[6],
		SEDBufferSize:    binary.BigEndian.Uint16(b[7:]),
		SEDDatagramCount: b[9],
	}, nil
}

// StatusTLV carries an error code in a reject response.
type StatusTLV struct{ Code uint8 }

func (t *StatusTLV) Type() Type { return TypeStatus }
func (t *StatusTLV) Len() int   { return 1 }
func (t *StatusTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeStatus, 1)
	b[n] = t.Code
	return n + 1, nil
}

// VersionTLV carries the MLE protocol version.
type VersionTLV struct{ Version uint16 }

func (t *VersionTLV) Type() Type { return TypeVersion }
func (t *VersionTLV) Len() int   { return 2 }
func (t *VersionTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeVersion, 2)
	binary.BigEndian.PutUint16(b[n:], t.Version)
	return n + 2, nil
}

// AddressRegistrationEntry is one entry of an AddressRegistrationTLV: either
// a full 16-byte IPv6 address, or a compressed (context-id, IID) pair.
type AddressRegistrationEntry struct {
	Compressed bool
	ContextID  uint8    // valid iff Compressed
	IID        [8]byte  // valid iff Compressed
	FullAddr   [16]byte // valid iff !Compressed
}

func (e AddressRegistrationEntry) encodedLen() int {
	if e.Compressed {
		return 9
	}
	return 17
}

func (e AddressRegistrationEntry) marshalTo(b []byte) int {
	if e.Compressed {
		b[0] = 0x80 | e.ContextID
		copy(b[1:], e.IID[:])
		return 9
	}
	b[0] = 0x00
	copy(b[1:], e.FullAddr[:])
	return 17
}

func unmarshalAddressRegistrationEntry(b []byte) (AddressRegistrationEntry, int, error) {
	if len(b) < 1 {
		return AddressRegistrationEntry{}, 0, fmt.Errorf("meshtlv: %w: empty address registration entry", ErrParse)
	}
	if b[0]&0x80 != 0 {
		if len(b) < 9 {
			return AddressRegistrationEntry{}, 0, fmt.Errorf("meshtlv: %w: short compressed address entry", ErrParse)
		}
		var e AddressRegistrationEntry
		e.Compressed = true
		e.ContextID = b[0] & 0x7f
		copy(e.IID[:], b[1:9])
		return e, 9, nil
	}
	if len(b) < 17 {
		return AddressRegistrationEntry{}, 0, fmt.Errorf("meshtlv: %w: short full address entry", ErrParse)
	}
	var e AddressRegistrationEntry
	copy(e.FullAddr[:], b[1:17])
	return e, 17, nil
}

// AddressRegistrationTLV carries a child's registered IPv6 addresses.
type AddressRegistrationTLV struct{ Entries []AddressRegistrationEntry }

func (t *AddressRegistrationTLV) Type() Type { return TypeAddressRegistration }
func (t *AddressRegistrationTLV) Len() int {
	n := 0
	for _, e := range t.Entries {
		n += e.encodedLen()
	}
	return n
}
func (t *AddressRegistrationTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeAddressRegistration, t.Len())
	pos := n
	for _, e := range t.Entries {
		pos += e.marshalTo(b[pos:])
	}
	return pos, nil
}

func unmarshalAddressRegistration(b []byte) ([]AddressRegistrationEntry, error) {
	var entries []AddressRegistrationEntry
	pos := 0
	for pos < len(b) {
		e, n, err := unmarshalAddressRegistrationEntry(b[pos:])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		pos += n
	}
	return entries, nil
}

// ChannelTLV carries a channel-page/channel pair.
type ChannelTLV struct {
	Page    uint8
	Channel uint16
}

func (t *ChannelTLV) Type() Type { return TypeChannel }
func (t *ChannelTLV) Len() int   { return 3 }
func (t *ChannelTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeChannel, 3)
	b[n] = t.Page
	binary.BigEndian.PutUint16(b[n+1:], t.Channel)
	return n + 3, nil
}

// PanIDTLV carries a PAN id.
type PanIDTLV struct{ PanID uint16 }

func (t *PanIDTLV) Type() Type { return TypePanID }
func (t *PanIDTLV) Len() int   { return 2 }
func (t *PanIDTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypePanID, 2)
	binary.BigEndian.PutUint16(b[n:], t.PanID)
	return n + 2, nil
}

// TimestampValue is an Active/Pending dataset timestamp: 48-bit seconds,
// 15-bit ticks, 1-bit authoritative flag, packed per the Thread spec.
type TimestampValue struct {
	Seconds       uint64 // 48 bits used
	Ticks         uint16 // 15 bits used
	Authoritative bool
}

// TimestampTLV wraps an Active or Pending Timestamp value.
type TimestampTLV struct {
	typ Type
	TS  TimestampValue
}

func (t *TimestampTLV) Type() Type { return t.typ }
func (t *TimestampTLV) Len() int   { return 8 }
func (t *TimestampTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, t.typ, 8)
	v := b[n:]
	binary.BigEndian.PutUint64(v, t.TS.Seconds<<16)
	ticksAndFlag := t.TS.Ticks << 1
	if t.TS.Authoritative {
		ticksAndFlag |= 1
	}
	v[6] = byte(ticksAndFlag >> 8)
	v[7] = byte(ticksAndFlag)
	return n + 8, nil
}

func unmarshalTimestampValue(b []byte) (TimestampValue, error) {
	if len(b) < 8 {
		return TimestampValue{}, fmt.Errorf("meshtlv: %w: short timestamp", ErrParse)
	}
	full := binary.BigEndian.Uint64(b)
	ticksAndFlag := uint16(full)
	return TimestampValue{
		Seconds:       full >> 16,
		Ticks:         ticksAndFlag >> 1,
		Authoritative: ticksAndFlag&1 != 0,
	}, nil
}

// NewActiveTimestampTLV builds an ActiveTimestamp TLV.
func NewActiveTimestampTLV(ts TimestampValue) *TimestampTLV {
	return &TimestampTLV{typ: TypeActiveTimestamp, TS: ts}
}

// NewPendingTimestampTLV builds a PendingTimestamp TLV.
func NewPendingTimestampTLV(ts TimestampValue) *TimestampTLV {
	return &TimestampTLV{typ: TypePendingTimestamp, TS: ts}
}

// SupervisionIntervalTLV carries the supervision check interval, in seconds.
type SupervisionIntervalTLV struct{ Seconds uint16 }

func (t *SupervisionIntervalTLV) Type() Type { return TypeSupervisionInterval }
func (t *SupervisionIntervalTLV) Len() int   { return 2 }
func (t *SupervisionIntervalTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeSupervisionInterval, 2)
	binary.BigEndian.PutUint16(b[n:], t.Seconds)
	return n + 2, nil
}

// CslChannelTLV carries the channel a sleepy peer samples on (0 = PAN channel).
type CslChannelTLV struct{ Channel uint8 }

func (t *CslChannelTLV) Type() Type { return TypeCslChannel }
func (t *CslChannelTLV) Len() int   { return 3 }
func (t *CslChannelTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeCslChannel, 3)
	b[n] = 0 // channel page
	binary.BigEndian.PutUint16(b[n+1:], uint16(t.Channel))
	return n + 3, nil
}

// CslTimeoutTLV carries the CSL keep-alive timeout, in seconds.
type CslTimeoutTLV struct{ Seconds uint32 }

func (t *CslTimeoutTLV) Type() Type { return TypeCslTimeout }
func (t *CslTimeoutTLV) Len() int   { return 4 }
func (t *CslTimeoutTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeCslTimeout, 4)
	binary.BigEndian.PutUint32(b[n:], t.Seconds)
	return n + 4, nil
}

// CslClockAccuracyTLV carries the peer's clock accuracy (ppm) and uncertainty.
type CslClockAccuracyTLV struct {
	AccuracyPPM   uint8
	UncertaintyUs uint8 // units of 10us, per the CSL clock accuracy TLV
}

func (t *CslClockAccuracyTLV) Type() Type { return TypeCslClockAccuracy }
func (t *CslClockAccuracyTLV) Len() int   { return 2 }
func (t *CslClockAccuracyTLV) MarshalBinaryTo(b []byte) (int, error) {
	n := writeHead(b, TypeCslClockAccuracy, 2)
	b[n] = t.AccuracyPPM
	b[n+1] = t.UncertaintyUs
	return n + 2, nil
}
