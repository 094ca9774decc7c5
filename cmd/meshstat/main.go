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

// Command meshstat is a read-only dump of a running meshd's counters:
// neighbor-table occupancy, CSL send/miss counts, and per-command
// tx/rx/drop tallies, fetched over its JSON stats endpoint the same way
// cmd/ptpcheck connects to a running sptp/ptp4l and renders the result as
// a table.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	rootVerboseFlag bool
	targetFlag      string
)

var rootCmd = &cobra.Command{
	Use:   "meshstat",
	Short: "Dump a running meshd's neighbor/CSL counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.SetLevel(log.InfoLevel)
		if rootVerboseFlag {
			log.SetLevel(log.DebugLevel)
		}
		counters, err := fetchCounters(targetFlag)
		if err != nil {
			return fmt.Errorf("fetching counters from %s: %w", targetFlag, err)
		}
		printCounters(os.Stdout, counters)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
	rootCmd.Flags().StringVarP(&targetFlag, "target", "t", "http://localhost:4292/counters", "meshd JSON stats endpoint to query")
}

// fetchCounters pulls the raw counter map meshd's mle/stats.JSONStats
// serves at /counters.
func fetchCounters(url string) (map[string]int64, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var counters map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&counters); err != nil {
		return nil, err
	}
	return counters, nil
}

// printCounters renders counters as a table grouped by prefix (tx.*,
// rx.*, drop.*, csl.*, everything else), colorizing zero counts dim and
// nonzero ones green the way cmd/ptpcheck/cmd/diag.go colors OK/WARN/FAIL
// rows, except here "nonzero" just means "has happened at least once"
// rather than a pass/fail verdict.
func printCounters(w *os.File, counters map[string]int64) {
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.SetColWidth(40)
	table.SetHeader([]string{"Group", "Counter", "Value"})

	for _, k := range keys {
		group := "other"
		if i := strings.Index(k, "."); i >= 0 {
			group = k[:i]
		}
		value := counters[k]
		valueStr := strconv.FormatInt(value, 10)
		if value > 0 {
			valueStr = color.GreenString(valueStr)
		} else {
			valueStr = color.New(color.Faint).Sprint(valueStr)
		}
		table.Append([]string{group, k, valueStr})
	}
	table.Render()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
