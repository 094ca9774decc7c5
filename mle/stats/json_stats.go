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
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
)

// JSONStats is the counters-over-HTTP reporter, the same shape as the
// teacher's ptp/sptp/client JSONStats: a single endpoint serves the raw
// counter map as JSON for anything that would rather poll than scrape
// Prometheus (a quick curl from an operator, a test harness).
var _ Stats = (*JSONStats)(nil)

type JSONStats struct {
	c counters
}

// NewJSONStats returns a new JSONStats.
func NewJSONStats() *JSONStats {
	s := &JSONStats{}
	s.c.init()
	return s
}

// Start runs the counters HTTP server on monitoringPort.
func (s *JSONStats) Start(monitoringPort int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/counters", s.handleCountersRequest)
	addr := fmt.Sprintf(":%d", monitoringPort)
	log.Infof("mle/stats: starting json stats server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("mle/stats: json stats listener stopped: %v", err)
	}
}

func (s *JSONStats) handleCountersRequest(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(s.c.toMap())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(js); err != nil {
		log.Errorf("mle/stats: reply: %v", err)
	}
}

// Snapshot is a no-op for JSONStats: toMap() always reads the live
// counters, so there is nothing to stage ahead of a request.
func (s *JSONStats) Snapshot() {}

func (s *JSONStats) Reset() { s.c.reset() }

func (s *JSONStats) IncTX(cmd meshtlv.Command) { s.c.tx.inc(int(cmd)) }
func (s *JSONStats) IncRX(cmd meshtlv.Command) { s.c.rx.inc(int(cmd)) }
func (s *JSONStats) IncDrop(kind meshnet.Kind) { s.c.drop.inc(int(kind)) }

func (s *JSONStats) IncKeySequenceAdopted() { s.c.keySequenceAdopted++ }
func (s *JSONStats) IncAttachAttempt()      { s.c.attachAttempt++ }
func (s *JSONStats) IncAttachSuccess()      { s.c.attachSuccess++ }
func (s *JSONStats) IncDetach()             { s.c.detach++ }

func (s *JSONStats) SetNeighborCount(n int64)      { s.c.neighborCount = n }
func (s *JSONStats) SetSubChildCount(n int64)      { s.c.subChildCount = n }
func (s *JSONStats) SetIndirectQueueDepth(n int64) { s.c.indirectQueueDepth = n }
func (s *JSONStats) IncCslFrameSent()              { s.c.cslFrameSent++ }
func (s *JSONStats) IncCslFrameMissed()            { s.c.cslFrameMissed++ }
