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

// Package bmc ranks candidate parents gathered during an attach cycle's
// ParentResponse collection window, a three-stage compare cascade in the
// shape of a best-master clock comparison: each stage returns a verdict or
// Unknown, and Unknown falls through to the next stage.
package bmc

import "github.com/openthread-go/meshlink/meshtlv"

// Result is the outcome of comparing two candidates.
type Result int8

// Comparison outcomes, ABetter/BBetter meaning "by a criterion with a
// margin", ABetterTopo/BBetterTopo meaning "by raw link margin, the
// lowest-priority tiebreak criterion".
const (
	ABetterTopo Result = 2
	ABetter     Result = 1
	Unknown     Result = 0
	BBetter     Result = -1
	BBetterTopo Result = -2
)

// Candidate is the subset of neighbor.ParentCandidate the ranking cascade
// reads, passed by value so the cascade has no dependency on the neighbor
// package (kept import-cycle-free; mle/attach.go is the adapter).
type Candidate struct {
	LinkMargin       meshtlv.LinkMargin
	IsRouter         bool
	ParentPriority   int8
	LinkQuality3     uint8
	LinkQuality2     uint8
	LinkQuality1     uint8
	ProtocolVersion  uint16
	SEDBufferSize    uint16
	SEDDatagramCount uint8

	// CslPowerMetric is only compared for sleepy (non rx-on-when-idle)
	// devices; smaller is better (spec.md §4.8 step 4h).
	CslPowerMetric uint32
}

func linkQualityClass(m meshtlv.LinkMargin) meshtlv.LinkQuality {
	return meshtlv.LinkQualityFromMargin(m)
}

// compareLinkQualityClass is cascade stage (a): two-way link margin rounded
// to its LQ class.
func compareLinkQualityClass(a, b Candidate) Result {
	qa, qb := linkQualityClass(a.LinkMargin), linkQualityClass(b.LinkMargin)
	if qa > qb {
		return ABetter
	}
	if qb > qa {
		return BBetter
	}
	return Unknown
}

// compareRouterVsReed is stage (b): a router source always beats a REED.
func compareRouterVsReed(a, b Candidate) Result {
	if a.IsRouter && !b.IsRouter {
		return ABetter
	}
	if b.IsRouter && !a.IsRouter {
		return BBetter
	}
	return Unknown
}

// compareParentPriority is stage (c): the Connectivity TLV's parent
// priority field, higher wins.
func compareParentPriority(a, b Candidate) Result {
	if a.ParentPriority > b.ParentPriority {
		return ABetter
	}
	if b.ParentPriority > a.ParentPriority {
		return BBetter
	}
	return Unknown
}

// compareConnectivityLQ3 is stage (d): more LQ3-class neighbors reported in
// the Connectivity TLV indicates a more richly-connected router.
func compareConnectivityLQ3(a, b Candidate) Result {
	if a.LinkQuality3 > b.LinkQuality3 {
		return ABetter
	}
	if b.LinkQuality3 > a.LinkQuality3 {
		return BBetter
	}
	return Unknown
}

// compareProtocolVersion is stage (e): a newer MLE protocol version wins.
// The ordering itself is delegated to meshtlv.CompareProtocolVersion so
// both this cascade and the codec agree on what "newer" means.
func compareProtocolVersion(a, b Candidate) Result {
	switch meshtlv.CompareProtocolVersion(a.ProtocolVersion, b.ProtocolVersion) {
	case 1:
		return ABetter
	case -1:
		return BBetter
	default:
		return Unknown
	}
}

// compareSEDCapacity is stage (f): larger SED buffer wins; ties broken by
// datagram count.
func compareSEDCapacity(a, b Candidate) Result {
	if a.SEDBufferSize != b.SEDBufferSize {
		if a.SEDBufferSize > b.SEDBufferSize {
			return ABetter
		}
		return BBetter
	}
	if a.SEDDatagramCount > b.SEDDatagramCount {
		return ABetter
	}
	if b.SEDDatagramCount > a.SEDDatagramCount {
		return BBetter
	}
	return Unknown
}

// compareLQ2LQ1 is stage (g): more LQ2-class neighbors wins, ties broken by
// LQ1-class count.
func compareLQ2LQ1(a, b Candidate) Result {
	if a.LinkQuality2 != b.LinkQuality2 {
		if a.LinkQuality2 > b.LinkQuality2 {
			return ABetter
		}
		return BBetter
	}
	if a.LinkQuality1 > b.LinkQuality1 {
		return ABetter
	}
	if b.LinkQuality1 > a.LinkQuality1 {
		return BBetter
	}
	return Unknown
}

// compareCslPower is stage (h), applied only for sleepy devices: smaller
// power metric wins.
func compareCslPower(a, b Candidate) Result {
	if a.CslPowerMetric < b.CslPowerMetric {
		return ABetter
	}
	if b.CslPowerMetric < a.CslPowerMetric {
		return BBetter
	}
	return Unknown
}

// compareRawMargin is the final tiebreak (stage i): raw link margin, in dB,
// with ties resolved to A (stable preference for the earlier candidate).
func compareRawMargin(a, b Candidate) Result {
	if a.LinkMargin > b.LinkMargin {
		return ABetterTopo
	}
	if b.LinkMargin > a.LinkMargin {
		return BBetterTopo
	}
	return ABetterTopo
}

// Compare runs the full nine-stage cascade of spec.md §4.8 step 4,
// returning as soon as a stage yields other than Unknown. sleepy selects
// whether stage (h), the CSL power-metric compare, participates; an
// rx-on-when-idle device skips it entirely, per spec.md "for sleepy
// devices only".
func Compare(a, b Candidate, sleepy bool) Result {
	stages := []func(Candidate, Candidate) Result{
		compareLinkQualityClass,
		compareRouterVsReed,
		compareParentPriority,
		compareConnectivityLQ3,
		compareProtocolVersion,
		compareSEDCapacity,
		compareLQ2LQ1,
	}
	if sleepy {
		stages = append(stages, compareCslPower)
	}
	stages = append(stages, compareRawMargin)

	for _, stage := range stages {
		if r := stage(a, b); r != Unknown {
			return r
		}
	}
	return Unknown
}

// Better reports whether a outranks b under Compare.
func Better(a, b Candidate, sleepy bool) bool {
	return Compare(a, b, sleepy) > Unknown
}
