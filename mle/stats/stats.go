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

/*
Package stats implements statistics collection and reporting for a mesh
node, following the same counter-then-snapshot shape this codebase's
teacher uses for its own server statistics.
*/
package stats

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
)

// Stats is a metric collection interface
type Stats interface {
	// Start starts a stat reporter
	// Use this for passive reporters
	Start(monitoringPort int)

	// Snapshot the values so they can be reported atomically
	Snapshot()

	// Reset atomically sets all the counters to 0
	Reset()

	// IncTX atomically adds 1 to the outgoing-command counter
	IncTX(cmd meshtlv.Command)

	// IncRX atomically adds 1 to the incoming-command counter
	IncRX(cmd meshtlv.Command)

	// IncDrop atomically adds 1 to the drop-reason counter
	IncDrop(kind meshnet.Kind)

	// IncKeySequenceAdopted atomically adds 1 to the key-sequence-adoption
	// counter
	IncKeySequenceAdopted()

	// IncAttachAttempt atomically adds 1 to the attach-attempt counter
	IncAttachAttempt()

	// IncAttachSuccess atomically adds 1 to the successful-attach counter
	IncAttachSuccess()

	// IncDetach atomically adds 1 to the detach counter
	IncDetach()

	// SetNeighborCount atomically sets the current child-table occupancy
	SetNeighborCount(n int64)

	// SetSubChildCount atomically sets the current sub-child-table
	// occupancy
	SetSubChildCount(n int64)

	// SetIndirectQueueDepth atomically sets the indirect sender's queue
	// depth
	SetIndirectQueueDepth(n int64)

	// IncCslFrameSent atomically adds 1 to the CSL-scheduled-send counter
	IncCslFrameSent()

	// IncCslFrameMissed atomically adds 1 to the CSL-window-missed counter
	IncCslFrameMissed()
}

// syncMapInt64 is a mutex-guarded map of per-key counters, the same shape
// as a histogram-by-label counter in a metrics library without the extra
// dependency: every key observed so far gets its own running total.
type syncMapInt64 struct {
	sync.Mutex
	m map[int]int64
}

func (s *syncMapInt64) init() { s.m = make(map[int]int64) }

func (s *syncMapInt64) keys() []int {
	s.Lock()
	defer s.Unlock()
	keys := make([]int, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	return keys
}

func (s *syncMapInt64) load(key int) int64 {
	s.Lock()
	defer s.Unlock()
	return s.m[key]
}

func (s *syncMapInt64) inc(key int) {
	s.Lock()
	s.m[key]++
	s.Unlock()
}

func (s *syncMapInt64) store(key int, value int64) {
	s.Lock()
	s.m[key] = value
	s.Unlock()
}

func (s *syncMapInt64) copy(dst *syncMapInt64) {
	for _, k := range s.keys() {
		dst.store(k, s.load(k))
	}
}

func (s *syncMapInt64) reset() {
	s.Lock()
	for k := range s.m {
		s.m[k] = 0
	}
	s.Unlock()
}

type counters struct {
	tx   syncMapInt64
	rx   syncMapInt64
	drop syncMapInt64

	keySequenceAdopted int64
	attachAttempt      int64
	attachSuccess      int64
	detach             int64
	neighborCount      int64
	subChildCount      int64
	indirectQueueDepth int64
	cslFrameSent       int64
	cslFrameMissed     int64
}

func (c *counters) init() {
	c.tx.init()
	c.rx.init()
	c.drop.init()
}

func (c *counters) reset() {
	c.tx.reset()
	c.rx.reset()
	c.drop.reset()
	c.keySequenceAdopted = 0
	c.attachAttempt = 0
	c.attachSuccess = 0
	c.detach = 0
	c.neighborCount = 0
	c.subChildCount = 0
	c.indirectQueueDepth = 0
	c.cslFrameSent = 0
	c.cslFrameMissed = 0
}

// toMap converts counters to a map for JSON reporting.
func (c *counters) toMap() map[string]int64 {
	res := make(map[string]int64)

	for _, t := range c.tx.keys() {
		name := strings.ToLower(meshtlv.Command(t).String())
		res[fmt.Sprintf("tx.%s", name)] = c.tx.load(t)
	}
	for _, t := range c.rx.keys() {
		name := strings.ToLower(meshtlv.Command(t).String())
		res[fmt.Sprintf("rx.%s", name)] = c.rx.load(t)
	}
	for _, t := range c.drop.keys() {
		name := strings.ToLower(meshnet.Kind(t).String())
		res[fmt.Sprintf("drop.%s", name)] = c.drop.load(t)
	}

	res["key_sequence_adopted"] = c.keySequenceAdopted
	res["attach.attempt"] = c.attachAttempt
	res["attach.success"] = c.attachSuccess
	res["detach"] = c.detach
	res["neighbor_count"] = c.neighborCount
	res["sub_child_count"] = c.subChildCount
	res["indirect_queue_depth"] = c.indirectQueueDepth
	res["csl.frame_sent"] = c.cslFrameSent
	res["csl.frame_missed"] = c.cslFrameMissed

	return res
}

// PromStats is the concrete Stats a mesh node wires into its Core: the
// counters accumulate in-process (the single-threaded cooperative model
// spec.md §5 requires of Core means no locking is needed around the
// scalar fields; the tx/rx/drop breakdowns stay behind syncMapInt64's
// mutex only because their key set is unbounded), and Snapshot pushes
// the current totals into a private prometheus.Registry as gauges — the
// same scrape-then-gauge shape this codebase's teacher uses in its own
// exporter (PrometheusExporter.scrapeMetrics,
// _examples/facebook-time/ptp/sptp/stats/prom_exporter.go), except the
// scrape source here is this process's own counters rather than another
// process's HTTP endpoint.
var _ Stats = (*PromStats)(nil)

type PromStats struct {
	c        counters
	registry *prometheus.Registry
	gauges   map[string]prometheus.Gauge
}

// NewPromStats builds a PromStats bound to its own private registry, so
// more than one mesh node in a single process (as in tests) never
// collides on a metric name in prometheus's default registry.
func NewPromStats() *PromStats {
	s := &PromStats{registry: prometheus.NewRegistry(), gauges: make(map[string]prometheus.Gauge)}
	s.c.init()
	return s
}

// Start serves the private registry's /metrics over HTTP, the same
// promhttp.HandlerFor wiring as the teacher's exporter.
func (s *PromStats) Start(monitoringPort int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", monitoringPort), mux); err != nil {
			log.Errorf("mle/stats: metrics listener stopped: %v", err)
		}
	}()
}

// Snapshot pushes every counter's current value into its prometheus
// gauge, registering the gauge the first time a given counter key is
// seen (new TX/RX/drop keys appear over the node's lifetime as it
// observes command and error kinds it hasn't yet).
func (s *PromStats) Snapshot() {
	for key, val := range s.c.toMap() {
		g, ok := s.gauges[key]
		if !ok {
			g = prometheus.NewGauge(prometheus.GaugeOpts{Name: flattenMetricName(key), Help: key})
			if err := s.registry.Register(g); err != nil {
				log.Warnf("mle/stats: register metric %s: %v", key, err)
				continue
			}
			s.gauges[key] = g
		}
		g.Set(float64(val))
	}
}

func flattenMetricName(key string) string {
	return "mle_" + strings.NewReplacer(".", "_", "-", "_").Replace(key)
}

// Reset atomically sets all the counters to 0.
func (s *PromStats) Reset() { s.c.reset() }

// IncTX atomically adds 1 to the outgoing-command counter.
func (s *PromStats) IncTX(cmd meshtlv.Command) { s.c.tx.inc(int(cmd)) }

// IncRX atomically adds 1 to the incoming-command counter.
func (s *PromStats) IncRX(cmd meshtlv.Command) { s.c.rx.inc(int(cmd)) }

// IncDrop atomically adds 1 to the drop-reason counter.
func (s *PromStats) IncDrop(kind meshnet.Kind) { s.c.drop.inc(int(kind)) }

// IncKeySequenceAdopted atomically adds 1 to the key-sequence-adoption
// counter.
func (s *PromStats) IncKeySequenceAdopted() { s.c.keySequenceAdopted++ }

// IncAttachAttempt atomically adds 1 to the attach-attempt counter.
func (s *PromStats) IncAttachAttempt() { s.c.attachAttempt++ }

// IncAttachSuccess atomically adds 1 to the successful-attach counter.
func (s *PromStats) IncAttachSuccess() { s.c.attachSuccess++ }

// IncDetach atomically adds 1 to the detach counter.
func (s *PromStats) IncDetach() { s.c.detach++ }

// SetNeighborCount atomically sets the current child-table occupancy.
func (s *PromStats) SetNeighborCount(n int64) { s.c.neighborCount = n }

// SetSubChildCount atomically sets the current sub-child-table
// occupancy.
func (s *PromStats) SetSubChildCount(n int64) { s.c.subChildCount = n }

// SetIndirectQueueDepth atomically sets the indirect sender's queue
// depth.
func (s *PromStats) SetIndirectQueueDepth(n int64) { s.c.indirectQueueDepth = n }

// IncCslFrameSent atomically adds 1 to the CSL-scheduled-send counter.
func (s *PromStats) IncCslFrameSent() { s.c.cslFrameSent++ }

// IncCslFrameMissed atomically adds 1 to the CSL-window-missed counter.
func (s *PromStats) IncCslFrameMissed() { s.c.cslFrameMissed++ }
