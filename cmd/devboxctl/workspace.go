package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lzjever/mbos-devbox/internal/core"
	"github.com/lzjever/mbos-devbox/internal/workspace"
)

type WorkspaceListResponse struct {
	Workspaces []workspace.Status `json:"workspaces"`
}

type AuditListResponse struct {
	Events []core.AuditEvent `json:"events"`
}

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Live workspace commands",
}

var wsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live workspaces",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(apiURL)

		var resp WorkspaceListResponse
		if err := client.Get("/v1/workspaces", &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printResult(resp.Workspaces)
	},
}

var wsGetCmd = &cobra.Command{
	Use:   "get <wsid>",
	Short: "Show a live workspace",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(apiURL)

		var st workspace.Status
		if err := client.Get("/v1/workspaces/"+args[0], &st); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printResult(st)
	},
}

var wsTeardownCmd = &cobra.Command{
	Use:   "teardown <wsid>",
	Short: "Kill the terminals of an idle workspace now",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(apiURL)

		if err := client.Post("/v1/workspaces/"+args[0]+"/teardown", nil, nil); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Workspace %s torn down.\n", args[0])
	},
}

var auditLimit int

var wsAuditCmd = &cobra.Command{
	Use:   "audit <wsid>",
	Short: "Show recent audit events of a workspace",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(apiURL)

		var resp AuditListResponse
		if err := client.Get(fmt.Sprintf("/v1/workspaces/%s/audit?limit=%d", args[0], auditLimit), &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printResult(resp.Events)
	},
}

func init() {
	wsAuditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "Maximum number of events")
	workspaceCmd.AddCommand(wsListCmd, wsGetCmd, wsTeardownCmd, wsAuditCmd)
	rootCmd.AddCommand(workspaceCmd)
}
