package audit

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// Render writes v as a human-readable verdict table, the CLI surface
// spec.md §1.3's audit tool exposes alongside the Go Verdict struct.
func Render(w io.Writer, gameID string, v *Verdict) {
	status := "CLEAN"
	if !v.OK {
		status = "FAILED"
	}

	fmt.Fprintf(w, "audit verdict for %s: %s\n", gameID, status)

	if len(v.Reasons) == 0 && len(v.Warnings) == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Severity", "Detail"})

	for _, r := range v.Reasons {
		table.Append([]string{"reason", r})
	}
	for _, wmsg := range v.Warnings {
		table.Append([]string{"warning", wmsg})
	}

	table.Render()
}
