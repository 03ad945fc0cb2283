package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/lzjever/mbos-devbox/internal/core"
	"github.com/lzjever/mbos-devbox/internal/workspace"
)

func printResult(v interface{}) {
	if output == "json" {
		json.NewEncoder(os.Stdout).Encode(v)
		return
	}
	printTable(v)
}

func printTable(v interface{}) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	switch data := v.(type) {
	case []workspace.Status:
		if len(data) == 0 {
			fmt.Println("No live workspaces.")
			return
		}
		fmt.Fprintln(w, "WORKSPACE\tPRESENCE\tSESSIONS\tTERMINALS\tFILES\tSIZE\tTEARDOWN")
		for _, st := range data {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
				st.WorkspaceID, st.Presence, st.Sessions, len(st.Terminals), st.Files, humanBytes(st.Bytes), armed(st.TeardownArmed))
		}
	case workspace.Status:
		fmt.Fprintf(w, "Workspace:\t%s\n", data.WorkspaceID)
		fmt.Fprintf(w, "Presence:\t%s\n", data.Presence)
		fmt.Fprintf(w, "Sessions:\t%d\n", data.Sessions)
		fmt.Fprintf(w, "Loaded:\t%t\n", data.Loaded)
		fmt.Fprintf(w, "Files:\t%d (%s)\n", data.Files, humanBytes(data.Bytes))
		fmt.Fprintf(w, "Terminals:\t%s\n", strings.Join(data.Terminals, ", "))
		fmt.Fprintf(w, "Teardown:\t%s\n", armed(data.TeardownArmed))
	case []core.AuditEvent:
		if len(data) == 0 {
			fmt.Println("No audit events found.")
			return
		}
		fmt.Fprintln(w, "TIME\tACTION\tUSER\tSESSION\tPAYLOAD")
		for _, ev := range data {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				ev.Ts.Format("2006-01-02 15:04:05"), ev.Action, ev.UserID, truncate(ev.SessionID, 8), truncate(string(ev.Payload), 60))
		}
	default:
		json.NewEncoder(os.Stdout).Encode(v)
	}
	w.Flush()
}

func armed(b bool) string {
	if b {
		return "armed"
	}
	return "idle"
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
