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

package stats

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
)

func gatherValue(t *testing.T, s *PromStats, name string) float64 {
	t.Helper()
	families, err := s.registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			require.Len(t, f.Metric, 1)
			return f.Metric[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestPromStatsCounters(t *testing.T) {
	s := NewPromStats()

	s.IncTX(meshtlv.CommandParentRequest)
	s.IncTX(meshtlv.CommandParentRequest)
	s.IncRX(meshtlv.CommandParentResponse)
	s.IncDrop(meshnet.KindDuplicated)
	s.IncKeySequenceAdopted()
	s.IncAttachAttempt()
	s.IncAttachSuccess()
	s.IncDetach()
	s.IncCslFrameSent()
	s.IncCslFrameMissed()
	s.SetNeighborCount(3)
	s.SetSubChildCount(1)
	s.SetIndirectQueueDepth(2)

	s.Snapshot()

	require.Equal(t, float64(2), gatherValue(t, s, "mle_tx_parentrequest"))
	require.Equal(t, float64(1), gatherValue(t, s, "mle_rx_parentresponse"))
	require.Equal(t, float64(1), gatherValue(t, s, "mle_drop_duplicated"))
	require.Equal(t, float64(1), gatherValue(t, s, "mle_key_sequence_adopted"))
	require.Equal(t, float64(1), gatherValue(t, s, "mle_attach_attempt"))
	require.Equal(t, float64(1), gatherValue(t, s, "mle_attach_success"))
	require.Equal(t, float64(1), gatherValue(t, s, "mle_detach"))
	require.Equal(t, float64(1), gatherValue(t, s, "mle_csl_frame_sent"))
	require.Equal(t, float64(1), gatherValue(t, s, "mle_csl_frame_missed"))
	require.Equal(t, float64(3), gatherValue(t, s, "mle_neighbor_count"))
	require.Equal(t, float64(1), gatherValue(t, s, "mle_sub_child_count"))
	require.Equal(t, float64(2), gatherValue(t, s, "mle_indirect_queue_depth"))

	s.Reset()
	s.Snapshot()
	require.Equal(t, float64(0), gatherValue(t, s, "mle_tx_parentrequest"))
}
