package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var obsCmd = &cobra.Command{
	Use:   "obs",
	Short: "Observability commands (query VictoriaMetrics)",
}

var vmsingleURL string

type VMResponse struct {
	Status string `json:"status"`
	Data   struct {
		Result []struct {
			Metric map[string]string `json:"metric"`
			Value  []interface{}     `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

func runQueries(queries map[string]string) {
	for name, query := range queries {
		fmt.Printf("%s: %s\n", name, queryVM(vmsingleURL, query))
	}
}

var obsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show sessions, workspaces and terminals",
	Run: func(cmd *cobra.Command, args []string) {
		runQueries(map[string]string{
			"Active Sessions":   `sum(devbox_active_sessions)`,
			"Loaded Workspaces": `sum(devbox_loaded_workspaces)`,
			"Live Terminals":    `sum(devbox_live_terminals)`,
			"Admission Denials": `sum(rate(devbox_admissions_total{result!="admitted"}[5m]))`,
		})
	},
}

var obsMutationsCmd = &cobra.Command{
	Use:   "mutations",
	Short: "Show mutation and quota metrics",
	Run: func(cmd *cobra.Command, args []string) {
		runQueries(map[string]string{
			"Accepted Rate":     `sum(rate(devbox_mutations_total{result="accepted"}[5m]))`,
			"Rate Limited Rate": `sum(rate(devbox_quota_rejected_total[5m]))`,
			"Refused Rate":      `sum(rate(devbox_mutations_total{result="refused"}[5m]))`,
		})
	},
}

var obsPersistCmd = &cobra.Command{
	Use:   "persist",
	Short: "Show store write metrics",
	Run: func(cmd *cobra.Command, args []string) {
		runQueries(map[string]string{
			"Queue Depth": `sum(devbox_persist_queue_depth)`,
			"Retry Rate":  `sum(rate(devbox_persist_retry_total[5m]))`,
			"Dead Writes": `sum(increase(devbox_persist_total{status="dead"}[1h]))`,
			"Write P95":   `histogram_quantile(0.95, sum(rate(devbox_persist_duration_seconds_bucket[5m])) by (le))`,
		})
	},
}

var obsLatencyCmd = &cobra.Command{
	Use:   "latency",
	Short: "Show latency metrics",
	Run: func(cmd *cobra.Command, args []string) {
		runQueries(map[string]string{
			"HTTP P95":      `histogram_quantile(0.95, sum(rate(devbox_http_request_duration_seconds_bucket[5m])) by (le))`,
			"Load P95":      `histogram_quantile(0.95, sum(rate(devbox_workspace_load_duration_seconds_bucket[5m])) by (le))`,
			"Teardown Rate": `sum(rate(devbox_teardowns_total{outcome="expired"}[5m]))`,
		})
	},
}

func queryVM(baseURL, query string) string {
	resp, err := http.Get(baseURL + "/api/v1/query?query=" + url.QueryEscape(query))
	if err != nil {
		return "error: " + err.Error()
	}
	defer resp.Body.Close()

	var vmResp VMResponse
	if err := json.NewDecoder(resp.Body).Decode(&vmResp); err != nil {
		return "parse error"
	}

	if len(vmResp.Data.Result) == 0 {
		return "no data"
	}

	result := vmResp.Data.Result[0]
	if len(result.Value) >= 2 {
		return fmt.Sprintf("%v", result.Value[1])
	}
	return "no value"
}

func init() {
	obsCmd.PersistentFlags().StringVar(&vmsingleURL, "vm-url", "http://localhost:8428", "VictoriaMetrics URL")
	obsCmd.AddCommand(obsSummaryCmd, obsMutationsCmd, obsPersistCmd, obsLatencyCmd)
	rootCmd.AddCommand(obsCmd)
}
