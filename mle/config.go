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

// Package mle implements the MLE Core State Machine (C8): attach, the
// key-sequence/message-classification security policy, Announce-driven
// channel discovery, and graceful detach, wired against the neighbor
// table, retransmission tracker, delayed sender, CSL scheduler/receiver,
// and indirect sender built in the sibling packages.
package mle

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// HopLimit is the required IPv6 hop limit on every MLE datagram
// (MLE_HOP_LIMIT, spec.md §6); anything else is dropped on receipt.
const HopLimit = 255

// Port is the UDP port MLE binds to.
const Port = 19788

// Config holds every tunable of the attach cycle, retransmission tracks,
// and CSL scheduling, loaded from YAML the way ptp/sptp/client/config.go
// loads SPTP's Config.
type Config struct {
	MaxChildren int `yaml:"max_children"`

	// ChildTimeout is this device's own keep-alive timeout in seconds
	// while attached as a child, sent in the Timeout TLV.
	ChildTimeout time.Duration `yaml:"child_timeout"`

	// FirstCycleParentRequestsToRoutersCount and
	// FirstCycleParentRequestsTotalCount bound step 2 of the attach
	// cycle's first iteration: this many requests go out routers-only,
	// then the remainder (Total-ToRouters) with a routers-and-REEDs scan
	// mask (spec.md §4.8 step 2).
	FirstCycleParentRequestsToRoutersCount int `yaml:"first_cycle_parent_requests_to_routers_count"`
	FirstCycleParentRequestsTotalCount     int `yaml:"first_cycle_parent_requests_total_count"`

	// NextCycleParentRequestsToRoutersCount/Total govern every attach
	// cycle after the first.
	NextCycleParentRequestsToRoutersCount int `yaml:"next_cycle_parent_requests_to_routers_count"`
	NextCycleParentRequestsTotalCount     int `yaml:"next_cycle_parent_requests_total_count"`

	ParentRequestRouterTimeout time.Duration `yaml:"parent_request_router_timeout"`
	ParentRequestReedTimeout   time.Duration `yaml:"parent_request_reed_timeout"`
	ChildIDResponseTimeout     time.Duration `yaml:"child_id_response_timeout"`

	AnnounceProcessTimeout time.Duration `yaml:"announce_process_timeout"`
	AnnounceDelay          time.Duration `yaml:"announce_delay"`

	// StartDelayMax bounds the jittered delay the Idle→Start transition
	// applies before the first ParentRequest of a cycle goes out.
	StartDelayMax time.Duration `yaml:"start_delay_max"`

	// GracefulDetachTimeout is the kTimeout ceiling spec.md §8's
	// "graceful detach" invariant names: DetachGracefully's callback
	// fires by this deadline even if no Child Update Response arrives.
	GracefulDetachTimeout time.Duration `yaml:"graceful_detach_timeout"`

	// RetxDelay/RetxJitterMax/RetxMaxAttempts/RetxMaxKeepAliveAttempts
	// parameterize retx.Tracker (spec.md §4.2).
	RetxDelay             time.Duration `yaml:"retx_delay"`
	RetxJitterMax         time.Duration `yaml:"retx_jitter_max"`
	RetxMaxAttempts       uint8         `yaml:"retx_max_attempts"`
	RetxMaxKeepAliveTries uint8         `yaml:"retx_max_keep_alive_tries"`

	// FrameRequestAheadUs and ReceiveTimeAheadUs are the CSL scheduling
	// margins (spec.md §4.5/§4.6); HasReceiveTimingHW selects the
	// single-timer vs double-timer CSL receive mode.
	FrameRequestAheadUs uint32 `yaml:"frame_request_ahead_us"`
	ReceiveTimeAheadUs  uint32 `yaml:"receive_time_ahead_us"`
	HasReceiveTimingHW  bool   `yaml:"has_receive_timing_hw"`

	// CslPeriod is this device's own sampled-listening period in units of
	// 10 symbols, advertised to the parent and armed on the radio when a
	// sleepy child attaches. Zero leaves CSL off (pure data-poll child).
	CslPeriod uint16 `yaml:"csl_period"`
}

// DefaultConfig returns a Config populated with the values this
// implementation ships with absent an on-disk override.
func DefaultConfig() *Config {
	return &Config{
		MaxChildren: 32,

		ChildTimeout: 240 * time.Second,

		FirstCycleParentRequestsToRoutersCount: 1,
		FirstCycleParentRequestsTotalCount:     2,
		NextCycleParentRequestsToRoutersCount:  1,
		NextCycleParentRequestsTotalCount:      2,

		ParentRequestRouterTimeout: 600 * time.Millisecond,
		ParentRequestReedTimeout:   1300 * time.Millisecond,
		ChildIDResponseTimeout:     1250 * time.Millisecond,

		AnnounceProcessTimeout: 250 * time.Millisecond,
		AnnounceDelay:          1050 * time.Millisecond,

		StartDelayMax: 250 * time.Millisecond,

		GracefulDetachTimeout: 500 * time.Millisecond,

		RetxDelay:             1 * time.Second,
		RetxJitterMax:         500 * time.Millisecond,
		RetxMaxAttempts:       4,
		RetxMaxKeepAliveTries: 1,

		FrameRequestAheadUs: 2000,
		ReceiveTimeAheadUs:  1000,
		HasReceiveTimingHW:  false,

		CslPeriod: 500,
	}
}

// Validate checks that every timer and count is in a usable range.
func (c *Config) Validate() error {
	if c.MaxChildren <= 0 {
		return fmt.Errorf("max_children must be positive")
	}
	if c.ChildTimeout <= 0 {
		return fmt.Errorf("child_timeout must be positive")
	}
	if c.FirstCycleParentRequestsToRoutersCount < 0 || c.FirstCycleParentRequestsTotalCount < c.FirstCycleParentRequestsToRoutersCount {
		return fmt.Errorf("invalid first-cycle parent request counts")
	}
	if c.NextCycleParentRequestsToRoutersCount < 0 || c.NextCycleParentRequestsTotalCount < c.NextCycleParentRequestsToRoutersCount {
		return fmt.Errorf("invalid next-cycle parent request counts")
	}
	if c.ParentRequestRouterTimeout <= 0 || c.ParentRequestReedTimeout <= 0 {
		return fmt.Errorf("parent request timeouts must be positive")
	}
	if c.ChildIDResponseTimeout <= 0 {
		return fmt.Errorf("child_id_response_timeout must be positive")
	}
	if c.AnnounceProcessTimeout <= 0 || c.AnnounceDelay <= 0 {
		return fmt.Errorf("announce timers must be positive")
	}
	if c.GracefulDetachTimeout <= 0 {
		return fmt.Errorf("graceful_detach_timeout must be positive")
	}
	if c.RetxDelay <= 0 || c.RetxMaxAttempts == 0 {
		return fmt.Errorf("invalid retx configuration")
	}
	return nil
}

// ReadConfig loads YAML config at path over DefaultConfig's values.
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("mle: invalid config: %w", err)
	}
	return c, nil
}
