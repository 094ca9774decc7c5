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

// Command meshd is the daemon bootstrap for a single MLE mesh node: it
// loads configuration, binds the MLE UDP socket, wires a mle.Core against
// it, and drives the single-threaded cooperative loop spec.md §5
// describes. It is not the Thread CLI (that stays an external
// collaborator, spec.md §1) - it's the same kind of thin daemon entry
// point the teacher ships for sptp/ptp4u (cmd/sptp/main.go).
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openthread-go/meshlink/meshnet"
	"github.com/openthread-go/meshlink/meshtlv"
	"github.com/openthread-go/meshlink/mle"
	"github.com/openthread-go/meshlink/mle/stats"
)

var (
	verboseFlag        bool
	ifaceFlag          string
	configFlag         string
	monitoringPortFlag int
	masterKeyFlag      string
)

// rootCmd mirrors cmd/ptpcheck/cmd/root.go's RootCmd shape: a single
// PersistentFlags-backed verbosity switch plus a RunE that does the work,
// since meshd (unlike ptpcheck) has no subcommands of its own.
var rootCmd = &cobra.Command{
	Use:   "meshd",
	Short: "Thread MLE mesh node daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.SetLevel(log.InfoLevel)
		if verboseFlag {
			log.SetLevel(log.DebugLevel)
		}
		cfg, err := loadConfig(configFlag)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return run(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "verbose output")
	rootCmd.Flags().StringVar(&ifaceFlag, "iface", "", "network interface to join MLE multicast groups on")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "path to the mle.Config yaml file")
	rootCmd.Flags().IntVar(&monitoringPortFlag, "monitoringport", 4292, "port to serve Prometheus/JSON stats on")
	rootCmd.Flags().StringVar(&masterKeyFlag, "masterkey", "", "hex-encoded 16-byte Thread network master key")
}

func loadConfig(path string) (*mle.Config, error) {
	if path == "" {
		return mle.DefaultConfig(), nil
	}
	return mle.ReadConfig(path)
}

func ownExtAddr() meshtlv.ExtAddr {
	var ext meshtlv.ExtAddr
	// A real deployment reads this from the radio/EUI-64 fuse; absent
	// that, meshd derives a process-local one so multiple local instances
	// (as in a development cluster) don't collide.
	binaryPut := uint64(os.Getpid())
	for i := range ext {
		ext[len(ext)-1-i] = byte(binaryPut >> (8 * uint(i)))
	}
	return ext
}

func masterKey() ([16]byte, error) {
	var key [16]byte
	if masterKeyFlag == "" {
		return key, nil
	}
	raw, err := hex.DecodeString(masterKeyFlag)
	if err != nil {
		return key, fmt.Errorf("decoding --masterkey: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("--masterkey must be exactly %d bytes hex-encoded", len(key))
	}
	copy(key[:], raw)
	return key, nil
}

// run binds the MLE socket, wires a mle.Core against it, and drives the
// cooperative loop until ctx is cancelled. The receive loop and the timer
// loop run as two goroutines fanned out by errgroup, the same split
// ptp/sptp/client/sptp.go's RunListener uses between its own receive
// goroutine and runInternal's single ticking goroutine.
func run(cfg *mle.Config) error {
	conn, err := net.ListenUDP("udp6", &net.UDPAddr{Port: mle.Port})
	if err != nil {
		return fmt.Errorf("binding MLE UDP socket: %w", err)
	}
	defer conn.Close()

	ownExt := ownExtAddr()
	radio := meshnet.NewUDPRadio(conn, ownExt, nil)
	if err := radio.ConfigureSocket(); err != nil {
		return fmt.Errorf("configuring MLE socket: %w", err)
	}
	if ifaceFlag != "" {
		ifi, err := net.InterfaceByName(ifaceFlag)
		if err != nil {
			return fmt.Errorf("resolving --iface %q: %w", ifaceFlag, err)
		}
		if err := radio.JoinMulticastGroups(ifi); err != nil {
			return fmt.Errorf("joining MLE multicast groups: %w", err)
		}
	}

	mk, err := masterKey()
	if err != nil {
		return err
	}

	core := mle.NewSystem(cfg, radio, &memNetworkData{}, newMemSettingsStore(), &memForwarder{}, mle.NewMasterKeyStore(mk))

	promStats := stats.NewPromStats()
	core.SetStats(promStats)
	go promStats.Start(monitoringPortFlag)

	if err := core.Enable(); err != nil {
		return fmt.Errorf("enabling core: %w", err)
	}
	if err := core.Start(meshtlv.ModeRxOnWhenIdle | meshtlv.ModeFullThreadDevice); err != nil {
		return fmt.Errorf("starting attach cycle: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return receiveLoop(ctx, conn, radio, core) })
	g.Go(func() error { return tickLoop(ctx, core) })
	g.Go(func() error { return notifyReadyOnceAttached(ctx, core) })

	return g.Wait()
}

// receiveLoop pulls frames off the radio and feeds them to Core -
// Core.HandleDatagram is the only cross-goroutine call this binary makes
// into Core, and it happens synchronously from this single receiver
// goroutine, matching spec.md §5's "no handler may block concurrently
// with the tick loop" rule via the same single-producer discipline
// RunListener uses for SPTP.
func receiveLoop(ctx context.Context, conn *net.UDPConn, radio *meshnet.UDPRadio, core *mle.Core) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		frame, err := radio.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warnf("meshd: receive: %v", err)
			continue
		}
		if err := core.HandleDatagram(ctx, time.Now(), meshnet.HopLimitValue, frame.Payload, frame.SrcExt); err != nil {
			log.Debugf("meshd: handle datagram from %s: %v", frame.SrcExt, err)
		}
	}
}

func tickLoop(ctx context.Context, core *mle.Core) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			core.Tick(now)
		}
	}
}

// notifyReadyOnceAttached pings systemd once this node becomes a Child,
// the same sd_notify-on-successful-start pattern ptp/c4u/c4u.go's
// SdNotify wraps for its own daemon.
func notifyReadyOnceAttached(ctx context.Context, core *mle.Core) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if core.GetRole() == mle.RoleChild {
				if supported, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
					log.Warnf("meshd: sd_notify: %v", err)
				} else if supported {
					log.Info("meshd: notified systemd readiness")
				}
				return nil
			}
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
